package replay

import (
	"context"

	"github.com/okian/footfall/internal/domain/model"
)

// Detector returns the recorded detections that reach the confidence threshold.
type Detector struct {
	threshold float64
}

// NewDetector creates a detector with the given confidence threshold.
func NewDetector(threshold float64) *Detector {
	return &Detector{threshold: threshold}
}

// Detect implements the pipeline detector.
func (d *Detector) Detect(_ context.Context, f *model.Frame) ([]model.Detection, error) {
	out := make([]model.Detection, 0, len(f.Detections))
	for _, det := range f.Detections {
		if det.Confidence >= d.threshold {
			out = append(out, det)
		}
	}
	return out, nil
}

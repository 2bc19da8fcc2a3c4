package replay

import (
	"time"

	"github.com/okian/footfall/internal/domain/geometry"
	"github.com/okian/footfall/internal/domain/model"
)

// Record is one JSONL line of a recorded run.
type Record struct {
	Stream     string            `json:"stream"`
	Index      int               `json:"index"`
	Timestamp  time.Time         `json:"ts"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Image      string            `json:"image,omitempty"`
	Detections []RecordDetection `json:"detections"`
}

// RecordDetection is one detector output inside a Record.
type RecordDetection struct {
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
	Embedding  []float64 `json:"embedding,omitempty"`
}

// Frame converts r to a domain frame. Detections with a malformed bbox are
// dropped and counted in skipped.
func (r *Record) Frame() (frame *model.Frame, skipped int) {
	f := &model.Frame{
		Stream:     r.Stream,
		Index:      r.Index,
		Timestamp:  r.Timestamp,
		Width:      r.Width,
		Height:     r.Height,
		ImageRef:   r.Image,
		Detections: make([]model.Detection, 0, len(r.Detections)),
	}
	for _, d := range r.Detections {
		b, ok := geometry.FromSlice(d.BBox)
		if !ok {
			skipped++
			continue
		}
		f.Detections = append(f.Detections, model.Detection{
			Box:        b,
			Confidence: d.Confidence,
			Embedding:  d.Embedding,
		})
	}
	return f, skipped
}

// RecordFromFrame is the inverse of Record.Frame, used by scene generators.
func RecordFromFrame(f *model.Frame) Record {
	r := Record{
		Stream:     f.Stream,
		Index:      f.Index,
		Timestamp:  f.Timestamp,
		Width:      f.Width,
		Height:     f.Height,
		Image:      f.ImageRef,
		Detections: make([]RecordDetection, 0, len(f.Detections)),
	}
	for _, d := range f.Detections {
		r.Detections = append(r.Detections, RecordDetection{
			BBox:       d.Box.Slice(),
			Confidence: d.Confidence,
			Embedding:  d.Embedding,
		})
	}
	return r
}

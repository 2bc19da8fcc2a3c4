package replay

import (
	"context"

	"github.com/okian/footfall/internal/domain/embedding"
	"github.com/okian/footfall/internal/domain/geometry"
	"github.com/okian/footfall/internal/domain/model"
)

// DefaultMinIoU is the overlap a detection needs to lend its embedding to a track.
const DefaultMinIoU = 0.3

// Embedder looks up the recorded embedding of the detection that overlaps a
// track box the most. Detections below minConfidence are ignored, matching
// what the Detector drops.
type Embedder struct {
	minIoU        float64
	minConfidence float64
}

// NewEmbedder creates an embedder requiring at least minIoU overlap with a
// detection of at least minConfidence.
func NewEmbedder(minIoU, minConfidence float64) *Embedder {
	return &Embedder{minIoU: minIoU, minConfidence: minConfidence}
}

// Embed returns a unit-length copy of the best overlapping embedding.
func (e *Embedder) Embed(_ context.Context, f *model.Frame, box geometry.Box) ([]float64, bool) {
	if f == nil {
		return nil, false
	}
	var (
		best    []float64
		bestIoU float64
	)
	for _, d := range f.Detections {
		if len(d.Embedding) == 0 || d.Confidence < e.minConfidence {
			continue
		}
		if iou := geometry.IoU(box, d.Box); iou >= e.minIoU && iou > bestIoU {
			best, bestIoU = d.Embedding, iou
		}
	}
	if best == nil {
		return nil, false
	}
	n, err := embedding.Normalize(best)
	if err != nil {
		return nil, false
	}
	return n, true
}

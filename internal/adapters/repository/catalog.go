package repository

import (
	"errors"
	"fmt"

	"github.com/okian/footfall/internal/domain/embedding"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/metrics"
)

// catalog is the in-memory search side shared by every store. Callers hold
// the store lock.
type catalog struct {
	index Index
	dim   int
}

// normalize validates vec against the catalog dimension and returns its
// unit-length copy.
func (c *catalog) normalize(vec []float64) ([]float64, error) {
	if c.dim != 0 && len(vec) != c.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), c.dim)
	}
	n, err := embedding.Normalize(vec)
	if err != nil {
		if errors.Is(err, embedding.ErrEmpty) {
			return nil, ErrEmptyEmbedding
		}
		return nil, fmt.Errorf("%w: %w", ErrEmptyEmbedding, err)
	}
	return n, nil
}

func (c *catalog) add(id int64, vec []float64) {
	if c.dim == 0 {
		c.dim = len(vec)
	}
	c.index.Add(id, vec)
}

func (c *catalog) best(query []float64, threshold float64) (model.Match, error) {
	if len(query) == 0 {
		return model.Match{}, ErrEmptyEmbedding
	}
	if c.dim != 0 && len(query) != c.dim {
		return model.Match{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), c.dim)
	}

	id, sim, ok := c.index.Best(query, threshold)
	if !ok {
		return model.Match{}, nil
	}
	found := sim >= threshold
	metrics.RecordIdentityLookup(sim, found)
	if !found {
		return model.Match{Similarity: sim}, nil
	}
	return model.Match{IdentityID: id, Similarity: sim, Found: true}, nil
}

func (c *catalog) len() int {
	return c.index.Len()
}

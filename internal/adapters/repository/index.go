package repository

import (
	"fmt"

	"github.com/okian/footfall/internal/domain/embedding"
)

// Index names accepted by NewIndex.
const (
	IndexLinear = "linear"
	IndexHNSW   = "hnsw"
)

// Index finds the stored embedding most similar to a query. Implementations
// are not safe for concurrent use; stores guard them.
type Index interface {
	// Add inserts a normalized embedding under id.
	Add(id int64, vec []float64)

	// Best returns the id and cosine similarity of the closest entry.
	// Approximate indexes may settle for any entry at or above threshold,
	// but must not report a best below threshold while an entry at or
	// above it exists. ok is false for an empty index.
	Best(query []float64, threshold float64) (id int64, similarity float64, ok bool)

	Len() int
}

// NewIndex builds an index by name. candidates only applies to hnsw.
func NewIndex(name string, candidates int) (Index, error) {
	switch name {
	case "", IndexLinear:
		return NewLinearIndex(), nil
	case IndexHNSW:
		return NewHNSWIndex(candidates), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndex, name)
	}
}

type indexEntry struct {
	id  int64
	vec []float64
}

// LinearIndex scans every entry. Exact, O(N) per query.
type LinearIndex struct {
	entries []indexEntry
}

// NewLinearIndex creates an empty linear index.
func NewLinearIndex() *LinearIndex {
	return &LinearIndex{}
}

// Add implements Index.
func (l *LinearIndex) Add(id int64, vec []float64) {
	l.entries = append(l.entries, indexEntry{id: id, vec: vec})
}

// Best implements Index. The scan is exact, so threshold is unused. Ties
// keep the earliest registered identity.
func (l *LinearIndex) Best(query []float64, _ float64) (int64, float64, bool) {
	if len(l.entries) == 0 {
		return 0, 0, false
	}
	bestID, best := l.entries[0].id, embedding.Cosine(query, l.entries[0].vec)
	for _, e := range l.entries[1:] {
		if sim := embedding.Cosine(query, e.vec); sim > best {
			bestID, best = e.id, sim
		}
	}
	return bestID, best, true
}

// Len implements Index.
func (l *LinearIndex) Len() int {
	return len(l.entries)
}

package repository

import (
	"github.com/coder/hnsw"

	"github.com/okian/footfall/internal/domain/embedding"
)

// HNSW graph parameters.
const (
	hnswMaxNeighbors     = 16
	hnswEfSearch         = 64
	defaultHNSWCandidate = 8

	// Below this many vectors a scan is as cheap as a graph search.
	hnswExactBelow = hnswEfSearch
)

// HNSWIndex answers queries from an approximate HNSW graph, re-ranking the
// candidates by exact cosine similarity so reported similarities match
// LinearIndex.
//
// The graph can miss the true nearest node. A query whose re-ranked best
// falls below the match threshold is therefore confirmed by an exact scan,
// so a stored face is never reported as unknown and registered twice.
type HNSWIndex struct {
	graph      *hnsw.Graph[int64]
	vectors    map[int64][]float64
	candidates int
}

// NewHNSWIndex creates an empty index that re-ranks the given number of
// nearest candidates.
func NewHNSWIndex(candidates int) *HNSWIndex {
	if candidates < 1 {
		candidates = defaultHNSWCandidate
	}
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.EfSearch = hnswEfSearch
	g.Distance = hnsw.CosineDistance

	return &HNSWIndex{
		graph:      g,
		vectors:    make(map[int64][]float64),
		candidates: candidates,
	}
}

// Add implements Index.
func (h *HNSWIndex) Add(id int64, vec []float64) {
	h.graph.Add(hnsw.MakeNode(id, embedding.Float32(vec)))
	h.vectors[id] = vec
}

// Best implements Index.
func (h *HNSWIndex) Best(query []float64, threshold float64) (int64, float64, bool) {
	if len(h.vectors) == 0 {
		return 0, 0, false
	}
	if len(h.vectors) <= hnswExactBelow {
		return h.scan(query)
	}

	var (
		bestID int64
		best   float64
		found  bool
	)
	for _, n := range h.graph.Search(embedding.Float32(query), max(h.candidates, hnswEfSearch)) {
		sim := embedding.Cosine(query, h.vectors[n.Key])
		if !found || sim > best || (sim == best && n.Key < bestID) {
			bestID, best, found = n.Key, sim, true
		}
	}
	if !found || best < threshold {
		return h.scan(query)
	}
	return bestID, best, true
}

// scan is the exact search; ties keep the smallest id like LinearIndex.
func (h *HNSWIndex) scan(query []float64) (int64, float64, bool) {
	var (
		bestID int64
		best   float64
		found  bool
	)
	for id, vec := range h.vectors {
		sim := embedding.Cosine(query, vec)
		if !found || sim > best || (sim == best && id < bestID) {
			bestID, best, found = id, sim, true
		}
	}
	return bestID, best, found
}

// Len implements Index.
func (h *HNSWIndex) Len() int {
	return len(h.vectors)
}

package tracker

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/footfall/internal/domain/geometry"
)

// Matcher assigns detections to tracks. Assign returns one entry per track
// holding the index of the detection bound to it, or -1. Every detection
// index appears at most once and only for pairs within maxDistance.
type Matcher interface {
	Assign(tracks, detections []geometry.Point, maxDistance float64) []int
}

// Matcher names accepted by NewMatcher.
const (
	MatcherGreedy    = "greedy"
	MatcherHungarian = "hungarian"
)

// NewMatcher returns the matcher registered under name.
func NewMatcher(name string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MatcherGreedy:
		return GreedyMatcher{}, nil
	case MatcherHungarian:
		return HungarianMatcher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMatcher, name)
	}
}

// GreedyMatcher walks tracks in insertion order and gives each one the
// nearest detection nobody has claimed yet. The result depends on track
// order and is not globally optimal. Equal distances go to the detection
// scanned first.
type GreedyMatcher struct{}

// Assign implements Matcher.
func (GreedyMatcher) Assign(tracks, detections []geometry.Point, maxDistance float64) []int {
	out := make([]int, len(tracks))
	used := make([]bool, len(detections))

	for i, tp := range tracks {
		out[i] = -1
		best, bestDist := -1, math.Inf(1)
		for j, dp := range detections {
			if used[j] {
				continue
			}
			if d := geometry.Distance(tp, dp); d < bestDist {
				best, bestDist = j, d
			}
		}
		if best >= 0 && bestDist <= maxDistance {
			out[i] = best
			used[best] = true
		}
	}

	return out
}

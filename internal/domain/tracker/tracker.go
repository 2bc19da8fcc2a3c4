// Package tracker assigns per-frame detections to short-lived track ids.
//
// The tracker is a centroid tracker: every track remembers the centroid of
// its last box, new detections are assigned to tracks by centroid distance,
// and tracks that go unmatched for more than the disappearance grace period
// are evicted. Assignment is delegated to a Matcher so the default greedy
// heuristic can be swapped for an optimal one without touching the
// registration and eviction bookkeeping.
//
// A Tracker serves one logical stream. It is not safe for concurrent use.
package tracker

import (
	"github.com/okian/footfall/internal/domain/geometry"
)

// Default tracker configuration.
const (
	DefaultMaxDisappeared = 30
	DefaultMaxDistance    = 80.0
)

// Track is the externally visible state of a tracked object.
type Track struct {
	ID       int
	Box      geometry.Box
	Centroid geometry.Point
	Missed   int
}

// Result is what one Update call reports.
type Result struct {
	// Active holds the tracks alive after the update, in insertion order.
	Active []Track
	// Evicted holds the tracks removed by this update with their last
	// known box.
	Evicted []Track
}

// Boxes returns the active tracks keyed by id.
func (r Result) Boxes() map[int]geometry.Box {
	out := make(map[int]geometry.Box, len(r.Active))
	for _, tr := range r.Active {
		out[tr.ID] = tr.Box
	}
	return out
}

// EvictedIDs returns the ids of the evicted tracks in eviction order.
func (r Result) EvictedIDs() []int {
	out := make([]int, len(r.Evicted))
	for i, tr := range r.Evicted {
		out[i] = tr.ID
	}
	return out
}

// Tracker maintains the set of visible tracks.
type Tracker struct {
	maxDisappeared int
	maxDistance    float64
	matcher        Matcher

	nextID int
	order  []int // insertion order of live track ids
	tracks map[int]*Track
}

// New creates a tracker with configuration options.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		maxDisappeared: DefaultMaxDisappeared,
		maxDistance:    DefaultMaxDistance,
		matcher:        GreedyMatcher{},
		nextID:         1,
		tracks:         make(map[int]*Track),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	return len(t.order)
}

// Update consumes the detections of one processed frame. It must be called
// once per frame, in frame order.
func (t *Tracker) Update(detections []geometry.Box) Result {
	if len(detections) == 0 {
		var evicted []Track
		for _, id := range t.order {
			tr := t.tracks[id]
			tr.Missed++
			if tr.Missed > t.maxDisappeared {
				evicted = append(evicted, *tr)
			}
		}
		t.remove(evicted)
		return Result{Active: t.snapshot(), Evicted: evicted}
	}

	if len(t.order) == 0 {
		for _, b := range detections {
			t.register(b)
		}
		return Result{Active: t.snapshot()}
	}

	centroids := make([]geometry.Point, len(detections))
	for i, b := range detections {
		centroids[i] = geometry.Centroid(b)
	}
	current := make([]geometry.Point, len(t.order))
	for i, id := range t.order {
		current[i] = t.tracks[id].Centroid
	}

	assigned := t.matcher.Assign(current, centroids, t.maxDistance)

	used := make([]bool, len(detections))
	var evicted []Track
	for i, id := range t.order {
		tr := t.tracks[id]
		if j := assigned[i]; j >= 0 && j < len(detections) && !used[j] {
			used[j] = true
			tr.Box = detections[j]
			tr.Centroid = centroids[j]
			tr.Missed = 0
			continue
		}
		tr.Missed++
		if tr.Missed > t.maxDisappeared {
			evicted = append(evicted, *tr)
		}
	}
	t.remove(evicted)

	for j, b := range detections {
		if !used[j] {
			t.register(b)
		}
	}

	return Result{Active: t.snapshot(), Evicted: evicted}
}

// Drain evicts every live track, e.g. when the stream ends.
func (t *Tracker) Drain() Result {
	evicted := t.snapshot()
	t.order = nil
	t.tracks = make(map[int]*Track)
	return Result{Evicted: evicted}
}

func (t *Tracker) register(b geometry.Box) {
	tr := &Track{
		ID:       t.nextID,
		Box:      b,
		Centroid: geometry.Centroid(b),
	}
	t.nextID++
	t.tracks[tr.ID] = tr
	t.order = append(t.order, tr.ID)
}

// remove drops the given tracks from both the index and the order in one
// pass, so no caller ever sees a half-removed track.
func (t *Tracker) remove(evicted []Track) {
	if len(evicted) == 0 {
		return
	}
	gone := make(map[int]struct{}, len(evicted))
	for _, tr := range evicted {
		gone[tr.ID] = struct{}{}
		delete(t.tracks, tr.ID)
	}
	kept := t.order[:0]
	for _, id := range t.order {
		if _, ok := gone[id]; !ok {
			kept = append(kept, id)
		}
	}
	t.order = kept
}

func (t *Tracker) snapshot() []Track {
	out := make([]Track, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.tracks[id])
	}
	return out
}

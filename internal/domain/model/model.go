// Package model contains domain models passed between layers.
package model

import (
	"image"
	"time"

	"github.com/okian/footfall/internal/domain/geometry"
)

// EventKind enumerates the persisted visitor transitions.
type EventKind string

const (
	// EventEntry marks the first binding of an identity in a track lifetime.
	EventEntry EventKind = "entry"
	// EventExit marks the eviction of a bound track.
	EventExit EventKind = "exit"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k == EventEntry || k == EventExit
}

// Detection is one face found in a frame by the detector.
type Detection struct {
	Box        geometry.Box
	Confidence float64
	// Embedding is set only by sources that carry precomputed embeddings.
	Embedding []float64
}

// Frame is a single decoded video frame together with anything the
// collaborators attached to it.
type Frame struct {
	Stream     string
	Index      int
	Timestamp  time.Time
	Width      int
	Height     int
	Image      image.Image // nil when the source has no pixels
	ImageRef   string      // where a source loads Image from on demand
	Detections []Detection
}

// Identity is a durable visitor record keyed by a normalized embedding.
type Identity struct {
	ID        int64
	Embedding []float64
	FirstSeen time.Time
	ImagePath string
}

// Event is a durable, append-only entry or exit record.
type Event struct {
	ID         int64
	IdentityID int64
	Kind       EventKind
	Timestamp  time.Time
	ImagePath  string
	Stream     string
	TrackID    int
}

// Match is the outcome of a nearest-identity lookup. Similarity is reported
// even when Found is false so callers can log near misses.
type Match struct {
	IdentityID int64
	Similarity float64
	Found      bool
}

// Resolution is the outcome of resolving an embedding to an identity,
// registering a new one when nothing matched.
type Resolution struct {
	Match
	Created bool
}

// Package repository persists visitor identities and their entry/exit events.
package repository

import (
	"context"
	"time"

	"github.com/okian/footfall/internal/domain/model"
)

// IdentityStore resolves embeddings to durable visitor identities.
type IdentityStore interface {
	// FindBestMatch returns the stored identity most similar to embedding.
	// Found is false when the best similarity is below threshold; Similarity
	// still carries the best value seen, or 0 for an empty store.
	FindBestMatch(ctx context.Context, embedding []float64, threshold float64) (model.Match, error)

	// Register stores a new identity with the normalized embedding and
	// returns its id.
	Register(ctx context.Context, embedding []float64, imagePath string, at time.Time) (int64, error)

	// MatchOrRegister runs FindBestMatch and, when nothing matches, Register,
	// with no other write in between.
	MatchOrRegister(ctx context.Context, embedding []float64, threshold float64, imagePath string, at time.Time) (model.Resolution, error)

	// Count returns the number of registered identities.
	Count(ctx context.Context) (int, error)
}

// EventLog is the append-only entry/exit record.
type EventLog interface {
	// AppendEvent stores ev and returns the assigned event id.
	AppendEvent(ctx context.Context, ev model.Event) (int64, error)
}

// EventQuery filters Events. Zero values match everything.
type EventQuery struct {
	IdentityID int64
	Kind       model.EventKind
	Stream     string
	Limit      int
}

// Stats summarizes the store.
type Stats struct {
	Visitors int
	Entries  int
	Exits    int
}

// Reader serves the read API.
type Reader interface {
	// Identity returns one identity or ErrNotFound.
	Identity(ctx context.Context, id int64) (model.Identity, error)

	// Identities lists identities by ascending id.
	Identities(ctx context.Context, offset, limit int) ([]model.Identity, error)

	// Events lists events newest first.
	Events(ctx context.Context, q EventQuery) ([]model.Event, error)

	Stats(ctx context.Context) (Stats, error)
}

// Store is the full persistence surface owned by one process.
type Store interface {
	IdentityStore
	EventLog
	Reader
	Close() error
}

// Package types contains the JSON shapes served by the read API.
package types

import (
	"time"

	"github.com/okian/footfall/internal/domain/model"
)

// Visitor is a registered identity without its embedding.
type Visitor struct {
	ID         int64     `json:"id"`
	FirstSeen  time.Time `json:"first_seen"`
	ImagePath  string    `json:"image_path"`
	Dimensions int       `json:"dimensions"`
}

// VisitorDetail is a visitor together with its most recent events.
type VisitorDetail struct {
	Visitor
	Events []Event `json:"events"`
}

// Event is an entry or exit record.
type Event struct {
	ID        int64     `json:"id"`
	VisitorID int64     `json:"visitor_id"`
	Kind      string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	ImagePath string    `json:"image_path"`
	Stream    string    `json:"stream,omitempty"`
	TrackID   int       `json:"track_id,omitempty"`
}

// Page wraps a list response.
type Page[T any] struct {
	Items  []T `json:"items"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// VisitorFrom converts a domain identity.
func VisitorFrom(id model.Identity) Visitor {
	return Visitor{
		ID:         id.ID,
		FirstSeen:  id.FirstSeen,
		ImagePath:  id.ImagePath,
		Dimensions: len(id.Embedding),
	}
}

// EventFrom converts a domain event.
func EventFrom(ev model.Event) Event {
	return Event{
		ID:        ev.ID,
		VisitorID: ev.IdentityID,
		Kind:      string(ev.Kind),
		Timestamp: ev.Timestamp,
		ImagePath: ev.ImagePath,
		Stream:    ev.Stream,
		TrackID:   ev.TrackID,
	}
}

// EventsFrom converts a list of domain events, never returning nil.
func EventsFrom(evs []model.Event) []Event {
	out := make([]Event, len(evs))
	for i, ev := range evs {
		out[i] = EventFrom(ev)
	}
	return out
}

package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/logger"
	"github.com/okian/footfall/pkg/metrics"
)

// MemoryStore keeps identities and events in process memory. It is used for
// ":memory:" runs and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	catalog    catalog
	identities []model.Identity
	byID       map[int64]int
	events     []model.Event
	closed     bool

	logger logger.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions("memory-store", opts)
	return &MemoryStore{
		catalog: catalog{index: o.index},
		byID:    make(map[int64]int),
		logger:  o.logger,
	}
}

// FindBestMatch implements IdentityStore.
func (s *MemoryStore) FindBestMatch(_ context.Context, vec []float64, threshold float64) (model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Match{}, ErrClosed
	}
	return s.catalog.best(vec, threshold)
}

// Register implements IdentityStore.
func (s *MemoryStore) Register(ctx context.Context, vec []float64, imagePath string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(ctx, vec, imagePath, at)
}

// MatchOrRegister implements IdentityStore.
func (s *MemoryStore) MatchOrRegister(ctx context.Context, vec []float64, threshold float64, imagePath string, at time.Time) (model.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Resolution{}, ErrClosed
	}

	m, err := s.catalog.best(vec, threshold)
	if err != nil || m.Found {
		return model.Resolution{Match: m}, err
	}
	id, err := s.register(ctx, vec, imagePath, at)
	if err != nil {
		return model.Resolution{Match: m}, err
	}
	return model.Resolution{
		Match:   model.Match{IdentityID: id, Similarity: m.Similarity},
		Created: true,
	}, nil
}

func (s *MemoryStore) register(ctx context.Context, vec []float64, imagePath string, at time.Time) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	n, err := s.catalog.normalize(vec)
	if err != nil {
		return 0, err
	}

	id := int64(len(s.identities) + 1)
	s.identities = append(s.identities, model.Identity{
		ID:        id,
		Embedding: n,
		FirstSeen: at,
		ImagePath: imagePath,
	})
	s.byID[id] = len(s.identities) - 1
	s.catalog.add(id, n)

	metrics.RecordIdentityRegistered()
	metrics.UpdateIdentitiesStored(len(s.identities))
	s.logger.Debug(ctx, "identity stored", logger.Int64("identity_id", id))
	return id, nil
}

// Count implements IdentityStore.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), nil
}

// AppendEvent implements EventLog.
func (s *MemoryStore) AppendEvent(_ context.Context, ev model.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if !ev.Kind.Valid() {
		return 0, fmt.Errorf("%w: kind %q", ErrInvalidEvent, ev.Kind)
	}
	if _, ok := s.byID[ev.IdentityID]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrNotFound, ev.IdentityID)
	}

	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	metrics.RecordEvent(string(ev.Kind))
	return ev.ID, nil
}

// Identity implements Reader.
func (s *MemoryStore) Identity(_ context.Context, id int64) (model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return model.Identity{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s.identities[i], nil
}

// Identities implements Reader.
func (s *MemoryStore) Identities(_ context.Context, offset, limit int) ([]model.Identity, error) {
	if offset < 0 || limit < 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.identities) {
		return []model.Identity{}, nil
	}
	end := len(s.identities)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]model.Identity, end-offset)
	copy(out, s.identities[offset:end])
	return out, nil
}

// Events implements Reader.
func (s *MemoryStore) Events(_ context.Context, q EventQuery) ([]model.Event, error) {
	if q.Limit < 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if !q.matches(ev) {
			continue
		}
		out = append(out, ev)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Stats implements Reader.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Visitors: len(s.identities)}
	for _, ev := range s.events {
		switch ev.Kind {
		case model.EventEntry:
			st.Entries++
		case model.EventExit:
			st.Exits++
		}
	}
	return st, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (q EventQuery) matches(ev model.Event) bool {
	if q.IdentityID != 0 && ev.IdentityID != q.IdentityID {
		return false
	}
	if q.Kind != "" && ev.Kind != q.Kind {
		return false
	}
	if q.Stream != "" && ev.Stream != q.Stream {
		return false
	}
	return true
}

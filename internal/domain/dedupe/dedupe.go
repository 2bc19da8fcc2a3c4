// Package dedupe guards lifecycle transitions so each one is acted on at
// most once.
package dedupe

import (
	"container/list"
	"context"
	"strconv"
	"sync"
)

// defaultMaxSize bounds the number of remembered keys.
const defaultMaxSize = 50000

// Deduper records seen keys to ensure at-most-once handling.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so the transition can be retried.
	Unrecord(ctx context.Context, key string)

	// Forget drops every key sharing the given prefix.
	Forget(ctx context.Context, prefix string)

	Size() int64
}

// TransitionKey builds the key for a transition of one track.
func TransitionKey(kind, stream string, trackID int) string {
	return TrackPrefix(stream, trackID) + kind
}

// TrackPrefix is the common prefix of every transition key of one track.
func TrackPrefix(stream string, trackID int) string {
	return stream + "/" + strconv.Itoa(trackID) + "/"
}

// inMemoryDeduper keeps keys in a map with FIFO eviction once maxSize is
// reached. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // oldest at the front
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.seen, oldest.Value.(string))
			d.order.Remove(oldest)
		}
	}

	d.seen[key] = d.order.PushBack(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Forget(_ context.Context, prefix string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for el := d.order.Front(); el != nil; {
		next := el.Next()
		key := el.Value.(string)
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			d.order.Remove(el)
			delete(d.seen, key)
		}
		el = next
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

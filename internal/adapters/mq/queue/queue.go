// Package queue defines the bounded job queue that feeds the store writer.
//
// Producers block while the queue is full, so a slow store applies
// backpressure to the frame loops instead of dropping writes.
package queue

import (
	"context"
	"sync"

	"github.com/okian/footfall/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Job is one unit of work for the single writer. Run is called with Ctx.
type Job struct {
	Name string
	Ctx  context.Context
	Run  func(ctx context.Context)
}

// Queue provides blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job, waiting for room. It fails with ErrClosed once the
	// queue is closed, or with the context error.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns a channel that receives jobs in enqueue order.
	// The channel is closed after Close once every queued job was delivered.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Jobs already queued are still delivered.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	closeOnce sync.Once
	closed    chan struct{}
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		closed:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)

	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	if q.IsClosed() {
		metrics.RecordQueueRejected()
		return ErrClosed
	}

	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs), q.capacity)
		return nil
	case <-q.closed:
		metrics.RecordQueueRejected()
		return ErrClosed
	case <-ctx.Done():
		metrics.RecordQueueRejected()
		return ctx.Err()
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
// Only one consumer is expected.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case j := <-q.jobs:
				if !q.deliver(ctx, out, j) {
					return
				}
			case <-q.closed:
				q.drain(ctx, out)
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) deliver(ctx context.Context, out chan<- Job, j Job) bool {
	select {
	case out <- j:
		metrics.UpdateQueueSize(len(q.jobs), q.capacity)
		return true
	case <-ctx.Done():
		return false
	}
}

// drain hands over whatever is still buffered after Close.
func (q *InMemoryQueue) drain(ctx context.Context, out chan<- Job) {
	for {
		select {
		case j := <-q.jobs:
			if !q.deliver(ctx, out, j) {
				return
			}
		default:
			return
		}
	}
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

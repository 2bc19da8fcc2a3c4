// Package worker runs the single writer that owns the identity store.
//
// Every stream submits its store calls here; the writer executes them one at
// a time in submission order, so matching and registration never interleave
// across streams.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/footfall/internal/adapters/mq/queue"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/logger"
	"github.com/okian/footfall/pkg/metrics"
)

// Store is the part of the repository the writer serializes.
type Store interface {
	FindBestMatch(ctx context.Context, embedding []float64, threshold float64) (model.Match, error)
	Register(ctx context.Context, embedding []float64, imagePath string, at time.Time) (int64, error)
	MatchOrRegister(ctx context.Context, embedding []float64, threshold float64, imagePath string, at time.Time) (model.Resolution, error)
	Count(ctx context.Context) (int, error)
	AppendEvent(ctx context.Context, ev model.Event) (int64, error)
}

// Queue defines how the writer receives jobs.
type Queue interface {
	Enqueue(ctx context.Context, j queue.Job) error
	Dequeue(ctx context.Context) <-chan queue.Job
	Close() error
}

// Writer executes store calls from many goroutines on one goroutine.
// It satisfies Store itself, so callers use it in place of the store.
type Writer struct {
	store Store
	queue Queue
	name  string

	done chan struct{}

	logger logger.Logger
}

var _ Store = (*Writer)(nil)

// NewWriter creates a writer over store fed by q. Call Run to start it.
func NewWriter(store Store, q Queue, opts ...Option) *Writer {
	w := &Writer{
		store:  store,
		queue:  q,
		name:   "writer",
		done:   make(chan struct{}),
		logger: logger.Get().Named("writer"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "writer" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run executes jobs until the queue is closed and drained or ctx is canceled.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(j)
		}
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (w *Writer) Shutdown(ctx context.Context) error {
	if err := w.queue.Close(); err != nil {
		w.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

func (w *Writer) process(j queue.Job) {
	if err := j.Ctx.Err(); err != nil {
		w.logger.Debug(context.Background(), "skipping canceled job", logger.String("job", j.Name))
		return
	}
	start := time.Now()
	j.Run(j.Ctx)
	metrics.RecordStoreLatency("writer_"+j.Name, time.Since(start))
}

// submit enqueues fn and waits for the writer to run it.
func (w *Writer) submit(ctx context.Context, name string, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	j := queue.Job{
		Name: name,
		Ctx:  ctx,
		Run: func(ctx context.Context) {
			defer close(finished)
			fn(ctx)
		},
	}
	if err := w.queue.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		select {
		case <-finished:
			return nil
		default:
			return fmt.Errorf("%s: %w", name, ErrStopped)
		}
	}
}

// FindBestMatch implements Store.
func (w *Writer) FindBestMatch(ctx context.Context, embedding []float64, threshold float64) (model.Match, error) {
	var (
		m   model.Match
		err error
	)
	if serr := w.submit(ctx, "find_best_match", func(ctx context.Context) {
		m, err = w.store.FindBestMatch(ctx, embedding, threshold)
	}); serr != nil {
		return model.Match{}, serr
	}
	return m, err
}

// Register implements Store.
func (w *Writer) Register(ctx context.Context, embedding []float64, imagePath string, at time.Time) (int64, error) {
	var (
		id  int64
		err error
	)
	if serr := w.submit(ctx, "register", func(ctx context.Context) {
		id, err = w.store.Register(ctx, embedding, imagePath, at)
	}); serr != nil {
		return 0, serr
	}
	return id, err
}

// MatchOrRegister implements Store.
func (w *Writer) MatchOrRegister(ctx context.Context, embedding []float64, threshold float64, imagePath string, at time.Time) (model.Resolution, error) {
	var (
		res model.Resolution
		err error
	)
	if serr := w.submit(ctx, "match_or_register", func(ctx context.Context) {
		res, err = w.store.MatchOrRegister(ctx, embedding, threshold, imagePath, at)
	}); serr != nil {
		return model.Resolution{}, serr
	}
	return res, err
}

// Count implements Store.
func (w *Writer) Count(ctx context.Context) (int, error) {
	var (
		n   int
		err error
	)
	if serr := w.submit(ctx, "count", func(ctx context.Context) {
		n, err = w.store.Count(ctx)
	}); serr != nil {
		return 0, serr
	}
	return n, err
}

// AppendEvent implements Store.
func (w *Writer) AppendEvent(ctx context.Context, ev model.Event) (int64, error) {
	var (
		id  int64
		err error
	)
	if serr := w.submit(ctx, "append_event", func(ctx context.Context) {
		id, err = w.store.AppendEvent(ctx, ev)
	}); serr != nil {
		return 0, serr
	}
	return id, err
}

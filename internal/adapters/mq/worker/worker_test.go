package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/footfall/internal/adapters/mq/queue"
	worker "github.com/okian/footfall/internal/adapters/mq/worker"
	"github.com/okian/footfall/internal/adapters/repository"
	model "github.com/okian/footfall/internal/domain/model"
	logging "github.com/okian/footfall/pkg/logger"
)

// slowStore delays every call so concurrent submitters overlap.
type slowStore struct {
	worker.Store
	delay time.Duration

	mu      sync.Mutex
	active  int
	maxSeen int
}

func (s *slowStore) enter() func() {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()
	time.Sleep(s.delay)
	return func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}
}

func (s *slowStore) FindBestMatch(ctx context.Context, e []float64, th float64) (model.Match, error) {
	defer s.enter()()
	return s.Store.FindBestMatch(ctx, e, th)
}

func (s *slowStore) MatchOrRegister(ctx context.Context, e []float64, th float64, p string, at time.Time) (model.Resolution, error) {
	defer s.enter()()
	return s.Store.MatchOrRegister(ctx, e, th, p, at)
}

func newWriter(store worker.Store) (*worker.Writer, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	w := worker.NewWriter(store, queue.NewInMemoryQueue(queue.WithCapacity(4)), worker.WithName("test-writer"))
	go w.Run(ctx)
	return w, cancel
}

func TestWriter(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a writer over a memory store", t, func() {
		store := repository.NewMemoryStore()
		w, cancel := newWriter(store)
		defer cancel()
		ctx := context.Background()

		convey.Convey("When registering and matching through it", func() {
			id, err := w.Register(ctx, []float64{0.6, 0.8}, "face_1.jpg", time.Now())
			convey.So(err, convey.ShouldBeNil)

			m, err := w.FindBestMatch(ctx, []float64{0.6, 0.8}, 0.99)
			convey.So(err, convey.ShouldBeNil)

			n, err := w.Count(ctx)
			convey.So(err, convey.ShouldBeNil)

			evID, err := w.AppendEvent(ctx, model.Event{IdentityID: id, Kind: model.EventEntry, Timestamp: time.Now()})
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then results come back from the store", func() {
				convey.So(id, convey.ShouldEqual, 1)
				convey.So(m.Found, convey.ShouldBeTrue)
				convey.So(m.IdentityID, convey.ShouldEqual, id)
				convey.So(n, convey.ShouldEqual, 1)
				convey.So(evID, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a store call fails", func() {
			_, err := w.AppendEvent(ctx, model.Event{IdentityID: 7, Kind: model.EventExit})

			convey.Convey("Then the store error is returned unchanged", func() {
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shut down", func() {
			sctx, scancel := context.WithTimeout(ctx, time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)

			_, err := w.Count(ctx)

			convey.Convey("Then later calls are rejected", func() {
				convey.So(errors.Is(err, queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWriterConcurrency(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given many streams resolving the same face at once", t, func() {
		store := &slowStore{Store: repository.NewMemoryStore(), delay: time.Millisecond}
		w, cancel := newWriter(store)
		defer cancel()

		const streams = 16
		results := make([]model.Resolution, streams)
		var wg sync.WaitGroup
		for i := 0; i < streams; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := w.MatchOrRegister(context.Background(), []float64{0.6, 0.8}, 0.9, "", time.Now())
				if err == nil {
					results[i] = res
				}
			}(i)
		}
		wg.Wait()

		created := 0
		for _, r := range results {
			if r.Created {
				created++
			}
			convey.So(r.IdentityID, convey.ShouldEqual, 1)
		}

		convey.So(created, convey.ShouldEqual, 1)
		convey.So(store.maxSeen, convey.ShouldEqual, 1)
	})
}

func TestWriterCancellation(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a writer that is not running", t, func() {
		w := worker.NewWriter(repository.NewMemoryStore(), queue.NewInMemoryQueue())

		convey.Convey("When the caller gives up", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := w.Count(ctx)

			convey.Convey("Then the context error is returned", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a writer whose run context is canceled", t, func() {
		w, cancel := newWriter(repository.NewMemoryStore())
		cancel()
		<-w.Done()

		_, err := w.Count(context.Background())

		convey.So(errors.Is(err, worker.ErrStopped), convey.ShouldBeTrue)
	})
}

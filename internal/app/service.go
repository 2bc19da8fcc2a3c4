// Package service runs the visitor pipeline for one or more camera streams.
//
// All streams share one identity store behind a single writer, so a face seen
// by two cameras at the same moment still becomes one identity.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/footfall/internal/adapters/mq/queue"
	"github.com/okian/footfall/internal/adapters/mq/worker"
	"github.com/okian/footfall/internal/adapters/replay"
	"github.com/okian/footfall/internal/adapters/repository"
	"github.com/okian/footfall/internal/config"
	"github.com/okian/footfall/internal/domain/coordinator"
	"github.com/okian/footfall/internal/domain/dedupe"
	"github.com/okian/footfall/internal/domain/tracker"
	"github.com/okian/footfall/pkg/logger"
	"github.com/okian/footfall/pkg/metrics"
)

// Service owns the store writer and the pipelines of a run.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	store  repository.Store
	images coordinator.ImageSink

	detector Detector
	embedder coordinator.Embedder
	dedupers []dedupe.Deduper // one per pipeline
	progress func(stream string)

	queue  *queue.InMemoryQueue
	writer *worker.Writer
	cancel context.CancelFunc

	runID     string
	startedAt time.Time
	started   bool
	streams   map[string]*Summary

	logger logger.Logger
}

// New constructs a Service over store. The store is owned by the caller.
func New(cfg *config.Config, store repository.Store, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		detector: replay.NewDetector(cfg.ConfidenceThreshold),
		embedder: replay.NewEmbedder(cfg.EmbedMinIoU, cfg.ConfidenceThreshold),
		streams:  make(map[string]*Summary),
		logger:   logger.Get().Named("service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start launches the store writer. Writes queued before Stop are always
// executed, even when ctx is canceled first.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.runID = uuid.NewString()
	s.startedAt = time.Now()
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.WriterQueueSize))
	s.writer = worker.NewWriter(s.store, s.queue)

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.writer.Run(wctx)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.String("run_id", s.runID),
		logger.Int("queue_size", s.cfg.WriterQueueSize),
	)
	return nil
}

// Stop drains the writer and releases it. The store stays open.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	err := s.writer.Shutdown(ctx)
	s.cancel()
	s.started = false
	s.logger.Info(ctx, "service stopped", logger.String("run_id", s.runID))
	return err
}

// NewPipeline builds the tracker and coordinator for one source.
func (s *Service) NewPipeline(src Source) (*Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	matcher, err := tracker.NewMatcher(s.cfg.TrackerMatcher)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", src.Name(), err)
	}
	tr := tracker.New(
		tracker.WithMaxDisappeared(s.cfg.TrackDisappearedFrames),
		tracker.WithMaxDistance(s.cfg.DistanceThreshold),
		tracker.WithMatcher(matcher),
	)

	// Transition keys are scoped to a stream, so pipelines never share a guard.
	deduper := dedupe.NewInMemoryDeduper()
	s.dedupers = append(s.dedupers, deduper)

	coordOpts := []coordinator.Option{
		coordinator.WithMatchThreshold(s.cfg.MatchThreshold),
		coordinator.WithEntryOnReidentify(s.cfg.EntryOnReidentify),
		coordinator.WithDeduper(deduper),
	}
	if s.images != nil {
		coordOpts = append(coordOpts, coordinator.WithImageSink(s.images))
	}
	coord := coordinator.New(src.Name(), s.writer, s.embedder, coordOpts...)

	return NewPipeline(src, s.detector, tr, coord,
		WithFrameSkip(s.cfg.FrameSkip),
		WithFlushOnEnd(s.cfg.FlushOnEnd),
		WithFrameHook(s.frameRead),
	), nil
}

// Run processes every source concurrently, one pipeline each, and returns
// their summaries in source order. A failing stream does not stop the others.
// Sources sharing a name are renamed "<name>#2", "<name>#3" and so on.
func (s *Service) Run(ctx context.Context, sources ...Source) ([]Summary, error) {
	if len(sources) == 0 {
		return nil, ErrNoStreams
	}
	sources = uniqueNames(sources)

	pipelines := make([]*Pipeline, len(sources))
	for i, src := range sources {
		p, err := s.NewPipeline(src)
		if err != nil {
			return nil, err
		}
		pipelines[i] = p
		s.track(src.Name(), Summary{Stream: src.Name()})
	}

	summaries := make([]Summary, len(sources))
	var g errgroup.Group
	for i, p := range pipelines {
		g.Go(func() error {
			sum, err := p.Run(ctx)
			summaries[i] = sum
			s.track(sum.Stream, sum)
			return err
		})
	}
	err := g.Wait()

	if n, cerr := s.store.Count(context.WithoutCancel(ctx)); cerr == nil {
		metrics.UpdateIdentitiesStored(n)
	}
	return summaries, err
}

// renamed overrides the stream name of a source.
type renamed struct {
	Source
	name string
}

func (r renamed) Name() string { return r.name }

func uniqueNames(sources []Source) []Source {
	out := make([]Source, len(sources))
	seen := make(map[string]int, len(sources))
	for i, src := range sources {
		name := src.Name()
		seen[name]++
		for n := seen[name]; n > 1; n++ {
			alt := fmt.Sprintf("%s#%d", name, n)
			if seen[alt] == 0 {
				seen[alt]++
				src = renamed{Source: src, name: alt}
				break
			}
		}
		out[i] = src
	}
	return out
}

func (s *Service) frameRead(stream string) {
	s.mu.Lock()
	if sum, ok := s.streams[stream]; ok {
		sum.Frames++
	}
	progress := s.progress
	s.mu.Unlock()

	if progress != nil {
		progress(stream)
	}
}

func (s *Service) track(stream string, sum Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[stream] = &sum
}

// Streams returns a snapshot of per-stream progress. Frame counts are live;
// the other counters are filled in when a stream finishes.
func (s *Service) Streams() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.streams))
	for _, sum := range s.streams {
		out = append(out, *sum)
	}
	return out
}

// dedupeSize sums the guards of every pipeline. Callers hold s.mu.
func (s *Service) dedupeSize() int64 {
	var n int64
	for _, d := range s.dedupers {
		n += d.Size()
	}
	return n
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	stats := map[string]interface{}{
		"started":     s.started,
		"runId":       s.runID,
		"queueSize":   s.cfg.WriterQueueSize,
		"matchIndex":  s.cfg.MatchIndex,
		"matcher":     s.cfg.TrackerMatcher,
		"dedupeSize":  s.dedupeSize(),
		"streamCount": len(s.streams),
	}
	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		stats["queueLength"] = s.queue.Len(context.Background())
	}
	s.mu.RUnlock()

	stats["streams"] = s.Streams()

	st, err := s.store.Stats(context.Background())
	if err != nil {
		if !errors.Is(err, repository.ErrClosed) {
			s.logger.Warn(context.Background(), "store stats unavailable", logger.Error(err))
		}
		return stats
	}
	stats["visitors"] = st.Visitors
	stats["entries"] = st.Entries
	stats["exits"] = st.Exits
	metrics.UpdateIdentitiesStored(st.Visitors)
	return stats
}

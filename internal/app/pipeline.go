package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/footfall/internal/domain/coordinator"
	"github.com/okian/footfall/internal/domain/geometry"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/internal/domain/tracker"
	"github.com/okian/footfall/pkg/logger"
	"github.com/okian/footfall/pkg/metrics"
)

// Source yields the frames of one stream in arrival order.
type Source interface {
	Name() string
	// Next returns io.EOF once the stream has ended.
	Next(ctx context.Context) (*model.Frame, error)
	// Load attaches pixels to a frame that is about to be processed.
	Load(ctx context.Context, f *model.Frame) error
}

// Detector finds faces in a frame.
type Detector interface {
	Detect(ctx context.Context, f *model.Frame) ([]model.Detection, error)
}

// Summary describes a finished or running stream.
type Summary struct {
	Stream        string `json:"stream"`
	Frames        int    `json:"frames"`
	Processed     int    `json:"processed"`
	Detections    int    `json:"detections"`
	TracksCreated int    `json:"tracks_created"`
	FrameErrors   int    `json:"frame_errors"`

	coordinator.Outcome
}

// Pipeline drives one stream: frame skip, detection, tracking and
// coordination, strictly one frame after another.
type Pipeline struct {
	stream   string
	source   Source
	detector Detector
	tracker  *tracker.Tracker
	coord    *coordinator.Coordinator

	frameSkip  int
	flushOnEnd bool
	onFrame    func(stream string)

	lastTrackID int

	logger logger.Logger
}

// NewPipeline wires the collaborators of one stream.
func NewPipeline(source Source, detector Detector, tr *tracker.Tracker, coord *coordinator.Coordinator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		stream:     source.Name(),
		source:     source,
		detector:   detector,
		tracker:    tr,
		coord:      coord,
		frameSkip:  1,
		flushOnEnd: true,
		logger:     logger.Get().Named("pipeline"),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = p.logger.Named(p.stream)
	return p
}

// Run processes frames until the source ends or ctx is canceled. Cancellation
// is only observed between frames, so everything written so far is complete.
// Tracks still bound at the end of the source get their exits when flushing
// is enabled; a canceled run leaves them open.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	sum := Summary{Stream: p.stream}
	p.logger.Info(ctx, "stream started", logger.Int("frame_skip", p.frameSkip))

	for {
		f, err := p.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logger.Info(ctx, "stream stopped",
				logger.Int("frames", sum.Frames),
				logger.Error(err),
			)
			return sum, fmt.Errorf("stream %s: %w", p.stream, err)
		}

		sum.Frames++
		if p.onFrame != nil {
			p.onFrame(p.stream)
		}
		if sum.Frames%p.frameSkip != 0 {
			metrics.RecordFrameSkipped(p.stream)
			continue
		}
		p.step(ctx, f, &sum)
	}

	if p.flushOnEnd {
		p.flush(ctx, &sum)
	}

	p.logger.Info(ctx, "stream finished",
		logger.Int("frames", sum.Frames),
		logger.Int("processed", sum.Processed),
		logger.Int("registered", sum.Registered),
		logger.Int("entries", sum.Entries),
		logger.Int("exits", sum.Exits),
	)
	return sum, nil
}

func (p *Pipeline) step(ctx context.Context, f *model.Frame, sum *Summary) {
	start := time.Now()
	sum.Processed++

	if err := p.source.Load(ctx, f); err != nil {
		p.logger.Warn(ctx, "frame image not loaded", logger.Int("frame", f.Index), logger.Error(err))
	}

	dets, err := p.detector.Detect(ctx, f)
	if err != nil {
		p.logger.Warn(ctx, "detection failed", logger.Int("frame", f.Index), logger.Error(err))
		dets = nil
	}
	sum.Detections += len(dets)
	metrics.RecordDetections(p.stream, len(dets))

	boxes := make([]geometry.Box, 0, len(dets))
	for _, d := range dets {
		b := d.Box
		if f.Width > 0 && f.Height > 0 {
			b = geometry.Clamp(b, f.Width, f.Height)
		}
		boxes = append(boxes, b)
	}

	res := p.tracker.Update(boxes)
	created := p.countCreated(res.Active)
	sum.TracksCreated += created
	metrics.RecordTracksCreated(p.stream, created)
	metrics.RecordTracksEvicted(p.stream, len(res.Evicted))
	metrics.UpdateTracksActive(p.stream, len(res.Active))

	out, err := p.coord.Process(ctx, f, res)
	sum.Add(out)
	if err != nil {
		sum.FrameErrors++
		p.logger.Error(ctx, "frame partially processed", logger.Int("frame", f.Index), logger.Error(err))
	}

	metrics.RecordFrameProcessed(p.stream, time.Since(start))
}

func (p *Pipeline) flush(ctx context.Context, sum *Summary) {
	res := p.tracker.Drain()
	if len(res.Evicted) == 0 {
		return
	}
	metrics.RecordTracksEvicted(p.stream, len(res.Evicted))
	metrics.UpdateTracksActive(p.stream, 0)

	out, err := p.coord.Flush(ctx, res.Evicted)
	sum.Add(out)
	if err != nil {
		sum.FrameErrors++
		p.logger.Error(ctx, "flush incomplete", logger.Error(err))
	}
}

// countCreated counts tracks that did not exist before this update. Track
// ids only grow, so anything above the previous maximum is new.
func (p *Pipeline) countCreated(active []tracker.Track) int {
	n, highest := 0, p.lastTrackID
	for _, tr := range active {
		if tr.ID > p.lastTrackID {
			n++
		}
		highest = max(highest, tr.ID)
	}
	p.lastTrackID = highest
	return n
}

package scenegen

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/footfall/internal/domain/embedding"
	"github.com/okian/footfall/internal/domain/geometry"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/logger"
)

// Layout constants.
const (
	faceWidth   = 80
	faceHeight  = 100
	laneSpacing = 300
	laneMargin  = 40
	driftPeriod = 60 // frames before a face's drift wraps back
)

// Visit is one continuous appearance of a visitor in one stream.
type Visit struct {
	Visitor int
	Stream  int
	Lane    int
	Start   int // first frame, inclusive
	End     int // last frame, inclusive
}

// Scene is a generated set of streams with known ground truth.
type Scene struct {
	Streams []string
	Visits  []Visit
	Frames  [][]*model.Frame // per stream, in order
	Truth   Truth

	embeddings [][]float64
	lanes      []geometry.Point
}

// Generate builds a scene. The same config always yields the same scene.
func Generate(ctx context.Context, cfg *Config) (*Scene, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	s := &Scene{lanes: lanes(cfg.Width, cfg.Height)}
	if len(s.lanes) == 0 {
		return nil, fmt.Errorf("%w: %dx%d frame holds no face lane", ErrInvalidConfig, cfg.Width, cfg.Height)
	}
	for i := range cfg.Streams {
		s.Streams = append(s.Streams, fmt.Sprintf("cam-%d", i+1))
	}
	for range cfg.Visitors {
		s.embeddings = append(s.embeddings, randomUnit(rng, cfg.Dim))
	}

	s.schedule(rng, cfg)
	if err := s.render(ctx, rng, cfg); err != nil {
		return nil, err
	}

	s.Truth = Truth{
		Visitors: cfg.Visitors,
		Entries:  cfg.Visitors,
		Exits:    len(s.Visits),
		Visits:   len(s.Visits),
	}
	for _, frames := range s.Frames {
		s.Truth.Frames += len(frames)
	}

	logger.Get().Info(ctx, "scene generated",
		logger.Int("streams", cfg.Streams),
		logger.Int("visitors", cfg.Visitors),
		logger.Int("visits", len(s.Visits)),
		logger.Int("frames", s.Truth.Frames),
	)
	return s, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.Streams < 1:
		return fmt.Errorf("%w: streams must be >= 1", ErrInvalidConfig)
	case cfg.Visitors < 0:
		return fmt.Errorf("%w: visitors must be >= 0", ErrInvalidConfig)
	case cfg.FrameSkip < 1:
		return fmt.Errorf("%w: frame skip must be >= 1", ErrInvalidConfig)
	case cfg.MaxDisappeared < 0:
		return fmt.Errorf("%w: max disappeared must be >= 0", ErrInvalidConfig)
	case cfg.MinVisit < cfg.FrameSkip:
		return fmt.Errorf("%w: visits shorter than the frame skip may never be processed", ErrInvalidConfig)
	case cfg.MaxVisit < cfg.MinVisit:
		return fmt.Errorf("%w: max visit below min visit", ErrInvalidConfig)
	case cfg.Dim < 2:
		return fmt.Errorf("%w: embedding dim must be >= 2", ErrInvalidConfig)
	case cfg.RevisitRate < 0 || cfg.RevisitRate > 1, cfg.NoiseRate < 0 || cfg.NoiseRate > 1:
		return fmt.Errorf("%w: rates must be in [0,1]", ErrInvalidConfig)
	}
	return nil
}

// lanes are the fixed spots faces walk around in, far enough apart that the
// tracker never confuses two of them.
func lanes(width, height int) []geometry.Point {
	var out []geometry.Point
	for y := laneMargin; y+faceHeight <= height; y += laneSpacing {
		for x := laneMargin; x+faceWidth+driftPeriod <= width; x += laneSpacing {
			out = append(out, geometry.Point{X: x, Y: y})
		}
	}
	return out
}

// gap is how long a lane stays empty after a visit so the old track is
// evicted before anyone else shows up there.
func gap(cfg *Config) int {
	return (cfg.MaxDisappeared + 2) * cfg.FrameSkip
}

func (s *Scene) schedule(rng *rand.Rand, cfg *Config) {
	freeAt := make([][]int, cfg.Streams)
	for i := range freeAt {
		freeAt[i] = make([]int, len(s.lanes))
		for l := range freeAt[i] {
			freeAt[i][l] = 1
		}
	}

	for v := range cfg.Visitors {
		visits := 1
		if rng.Float64() < cfg.RevisitRate {
			visits++
		}
		lastEnd := -gap(cfg)
		for n := range visits {
			stream := v % cfg.Streams
			if n > 0 {
				stream = rng.IntN(cfg.Streams)
			}
			lane := earliest(freeAt[stream])
			start := max(freeAt[stream][lane], lastEnd+gap(cfg)+1)
			end := start + cfg.MinVisit + rng.IntN(cfg.MaxVisit-cfg.MinVisit+1) - 1

			freeAt[stream][lane] = end + gap(cfg) + 1
			lastEnd = end
			s.Visits = append(s.Visits, Visit{Visitor: v, Stream: stream, Lane: lane, Start: start, End: end})
		}
	}
}

func earliest(free []int) int {
	best := 0
	for i, f := range free {
		if f < free[best] {
			best = i
		}
	}
	return best
}

func (s *Scene) render(ctx context.Context, rng *rand.Rand, cfg *Config) error {
	length := make([]int, cfg.Streams)
	for _, v := range s.Visits {
		length[v.Stream] = max(length[v.Stream], v.End+gap(cfg))
	}

	s.Frames = make([][]*model.Frame, cfg.Streams)
	for st := range cfg.Streams {
		var visits []Visit
		for _, v := range s.Visits {
			if v.Stream == st {
				visits = append(visits, v)
			}
		}

		for i := 1; i <= length[st]; i++ {
			if i%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			f := &model.Frame{
				Stream:    s.Streams[st],
				Index:     i,
				Timestamp: cfg.Start.Add(time.Duration(i-1) * cfg.FrameInterval),
				Width:     cfg.Width,
				Height:    cfg.Height,
			}
			for _, v := range visits {
				if i < v.Start || i > v.End {
					continue
				}
				f.Detections = append(f.Detections, model.Detection{
					Box:        s.faceBox(v, i),
					Confidence: 0.6 + 0.4*rng.Float64(),
					Embedding:  s.observe(rng, cfg, v.Visitor),
				})
			}
			if rng.Float64() < cfg.NoiseRate {
				f.Detections = append(f.Detections, falseHit(rng, cfg))
			}
			s.Frames[st] = append(s.Frames[st], f)
		}
	}
	return nil
}

func (s *Scene) faceBox(v Visit, frame int) geometry.Box {
	p := s.lanes[v.Lane]
	x := float64(p.X + (frame-v.Start)%driftPeriod)
	y := float64(p.Y)
	return geometry.Box{X1: x, Y1: y, X2: x + faceWidth, Y2: y + faceHeight}
}

// observe is the visitor's embedding as a detector would see it in one frame.
func (s *Scene) observe(rng *rand.Rand, cfg *Config, visitor int) []float64 {
	base := s.embeddings[visitor]
	out := make([]float64, len(base))
	for i, x := range base {
		out[i] = x + rng.NormFloat64()*cfg.Jitter
	}
	n, err := embedding.Normalize(out)
	if err != nil {
		return base
	}
	return n
}

// falseHit is a detection the confidence threshold is expected to drop.
func falseHit(rng *rand.Rand, cfg *Config) model.Detection {
	x := rng.Float64() * float64(cfg.Width-faceWidth)
	y := rng.Float64() * float64(cfg.Height-faceHeight)
	return model.Detection{
		Box:        geometry.Box{X1: x, Y1: y, X2: x + faceWidth/2, Y2: y + faceHeight/2},
		Confidence: 0.05 + 0.25*rng.Float64(),
	}
}

func randomUnit(rng *rand.Rand, dim int) []float64 {
	v := make([]float64, dim)
	for {
		for i := range v {
			v[i] = rng.NormFloat64()
		}
		if n, err := embedding.Normalize(v); err == nil && !math.IsNaN(n[0]) {
			return n
		}
	}
}

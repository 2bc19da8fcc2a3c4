package service_test

import (
	"context"
	"io"
	"time"

	"github.com/okian/footfall/internal/domain/geometry"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// sliceSource replays prepared frames.
type sliceSource struct {
	name   string
	frames []*model.Frame
	pos    int
	loads  int
}

func (s *sliceSource) Name() string { return s.name }

func (s *sliceSource) Next(ctx context.Context) (*model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceSource) Load(context.Context, *model.Frame) error {
	s.loads++
	return nil
}

// person is a face walking right at two pixels a frame.
type person struct {
	x, y      float64
	embedding []float64
}

func (p person) at(i int) model.Detection {
	x := p.x + float64(2*i)
	return model.Detection{
		Box:        geometry.Box{X1: x, Y1: p.y, X2: x + 50, Y2: p.y + 60},
		Confidence: 0.9,
		Embedding:  p.embedding,
	}
}

// scene builds n frames; visible reports which people appear in frame i.
func scene(stream string, n int, people []person, visible func(i, who int) bool) *sliceSource {
	src := &sliceSource{name: stream}
	for i := 1; i <= n; i++ {
		f := &model.Frame{
			Stream:    stream,
			Index:     i,
			Timestamp: base.Add(time.Duration(i) * 100 * time.Millisecond),
			Width:     640,
			Height:    480,
		}
		for who, p := range people {
			if visible(i, who) {
				f.Detections = append(f.Detections, p.at(i))
			}
		}
		src.frames = append(src.frames, f)
	}
	return src
}

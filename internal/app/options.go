package service

import (
	"github.com/okian/footfall/internal/domain/coordinator"
	"github.com/okian/footfall/pkg/logger"
)

// PipelineOption applies a configuration option to a Pipeline.
type PipelineOption func(*Pipeline)

// WithFrameSkip processes every nth frame only.
func WithFrameSkip(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.frameSkip = n
		}
	}
}

// WithFlushOnEnd controls whether tracks still alive at the end of the
// source are evicted with an exit.
func WithFlushOnEnd(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.flushOnEnd = enabled
	}
}

// WithFrameHook is called for every frame read, processed or not.
func WithFrameHook(fn func(stream string)) PipelineOption {
	return func(p *Pipeline) {
		p.onFrame = fn
	}
}

// WithPipelineLogger sets a custom logger for the pipeline.
func WithPipelineLogger(l logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithImageSink persists crops for every stream.
func WithImageSink(sink coordinator.ImageSink) Option {
	return func(s *Service) {
		s.images = sink
	}
}

// WithDetector replaces the detector built from the config.
func WithDetector(d Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithEmbedder replaces the embedder built from the config.
func WithEmbedder(e coordinator.Embedder) Option {
	return func(s *Service) {
		if e != nil {
			s.embedder = e
		}
	}
}

// WithProgress is called for every frame read on any stream.
func WithProgress(fn func(stream string)) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

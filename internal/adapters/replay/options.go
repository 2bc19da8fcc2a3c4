package replay

import (
	"github.com/okian/footfall/pkg/logger"
)

// SourceOption applies a configuration option to a Source.
type SourceOption func(*Source)

// WithStreamName names frames whose record has no stream.
func WithStreamName(name string) SourceOption {
	return func(s *Source) {
		if name != "" {
			s.name = name
		}
	}
}

// WithBaseDir resolves relative image paths against dir.
func WithBaseDir(dir string) SourceOption {
	return func(s *Source) {
		s.baseDir = dir
	}
}

// WithLogger sets a custom logger for the source.
func WithLogger(l logger.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

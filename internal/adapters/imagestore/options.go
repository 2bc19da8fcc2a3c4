package imagestore

import (
	"github.com/okian/footfall/pkg/logger"
)

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithMaxSide downscales crops whose longest side exceeds n pixels.
// Zero keeps crops at their original size.
func WithMaxSide(n int) Option {
	return func(s *FileStore) {
		if n >= 0 {
			s.maxSide = n
		}
	}
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(s *FileStore) {
		if q >= 1 && q <= 100 {
			s.quality = q
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

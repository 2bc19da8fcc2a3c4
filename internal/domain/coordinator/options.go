package coordinator

import (
	"github.com/okian/footfall/internal/domain/dedupe"
	"github.com/okian/footfall/pkg/logger"
)

// DefaultMatchThreshold is the minimum cosine similarity to reuse an identity.
const DefaultMatchThreshold = 0.60

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithMatchThreshold sets the re-identification threshold.
func WithMatchThreshold(threshold float64) Option {
	return func(c *Coordinator) {
		c.threshold = threshold
	}
}

// WithEntryOnReidentify writes an entry event when a new track matches an
// already known identity.
func WithEntryOnReidentify(enabled bool) Option {
	return func(c *Coordinator) {
		c.entryOnReidentify = enabled
	}
}

// WithImageSink persists reference and event crops. Without one, image
// paths are left empty.
func WithImageSink(sink ImageSink) Option {
	return func(c *Coordinator) {
		c.images = sink
	}
}

// WithDeduper sets the transition guard.
func WithDeduper(d dedupe.Deduper) Option {
	return func(c *Coordinator) {
		if d != nil {
			c.dedupe = d
		}
	}
}

// WithLogger sets a custom logger for the coordinator.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

package repository

import (
	"github.com/okian/footfall/pkg/logger"
)

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	index  Index
	logger logger.Logger
}

func newOptions(component string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.index == nil {
		o.index = NewLinearIndex()
	}
	if o.logger == nil {
		o.logger = logger.Get().Named(component)
	}
	return o
}

// WithIndex sets the index used by FindBestMatch. It must be empty; the
// store fills it with the identities it loads.
func WithIndex(idx Index) Option {
	return func(o *options) {
		if idx != nil {
			o.index = idx
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Package worker fans updates off the bus out to connected subscribers.
package worker

import (
	"github.com/okian/rumble/pkg/logger"
)

// Option applies a configuration option to a Broadcaster.
type Option func(*Broadcaster)

// WithName sets the broadcaster name for identification and logging.
func WithName(name string) Option {
	return func(b *Broadcaster) {
		if name != "" {
			b.name = name
			b.logger = b.logger.Named(name)
		}
	}
}

// WithLogger sets a custom logger for the broadcaster.
func WithLogger(l logger.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

// RegistryOption applies a configuration option to a Registry.
type RegistryOption func(*Registry)

// WithSubscriberBuffer sets the per-subscriber channel buffer.
func WithSubscriberBuffer(size int) RegistryOption {
	return func(r *Registry) {
		if size > 0 {
			r.bufferSize = size
		}
	}
}

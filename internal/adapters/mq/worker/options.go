package worker

import (
	"time"

	"github.com/okian/plusolver/pkg/logger"
)

// Option applies a configuration option to the Relay.
type Option func(*Relay)

// WithName sets the relay name for identification and logging.
func WithName(name string) Option {
	return func(r *Relay) {
		if name != "" {
			r.name = name
		}
	}
}

// WithPollInterval sets how long a poll waits on an empty queue.
func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithLogger sets a custom logger for the relay.
func WithLogger(l logger.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

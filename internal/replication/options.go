package replication

import (
	"time"

	"github.com/okian/tally/pkg/logger"
)

// Option applies a configuration option to the Replicator.
type Option func(*Replicator)

// WithInterval sets the replication cycle interval.
func WithInterval(d time.Duration) Option {
	return func(r *Replicator) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMaxRetries sets how many times a failed push is retried per cycle.
func WithMaxRetries(n int) Option {
	return func(r *Replicator) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBackoff sets the base backoff between push retries.
func WithBackoff(d time.Duration) Option {
	return func(r *Replicator) {
		if d > 0 {
			r.backoff = d
		}
	}
}

// WithLogger sets a custom logger for the replicator.
func WithLogger(l logger.Logger) Option {
	return func(r *Replicator) {
		if l != nil {
			r.logger = l
		}
	}
}

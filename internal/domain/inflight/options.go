package inflight

// Option applies a configuration option to the tracker.
type Option func(*inMemoryTracker)

// WithMaxActive caps concurrent runs across all identifiers.
// If maxActive <= 0 the tracker only enforces one run per identifier.
func WithMaxActive(maxActive int) Option {
	return func(t *inMemoryTracker) {
		t.maxActive = maxActive
	}
}

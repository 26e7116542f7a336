package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithSeed sets the seed mixed into node priorities. Different seeds give
// different, equally balanced tree shapes for the same content.
func WithSeed(seed uint64) Option {
	return func(s *TreapStore) {
		s.seed = seed
	}
}

// WithMetrics turns latency and size reporting on or off.
func WithMetrics(enabled bool) Option {
	return func(s *TreapStore) {
		s.metricsEnabled = enabled
	}
}

package ledger

// Option applies a configuration option to the in-memory ledger.
type Option func(*inMemoryLedger)

// WithCapacity sizes the initial key map. A game rarely exceeds a few
// hundred plays; non-positive values keep the default.
func WithCapacity(n int) Option {
	return func(l *inMemoryLedger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

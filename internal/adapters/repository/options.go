package repository

import "time"

// Option applies a configuration option to a store.
type Option func(*storeConfig)

type storeConfig struct {
	rowCapacity int
	busyTimeout time.Duration
}

func defaultStoreConfig() storeConfig {
	return storeConfig{rowCapacity: 128, busyTimeout: 5 * time.Second}
}

// WithRowCapacity presizes in-memory tables.
func WithRowCapacity(n int) Option {
	return func(c *storeConfig) {
		if n > 0 {
			c.rowCapacity = n
		}
	}
}

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *storeConfig) {
		if d > 0 {
			c.busyTimeout = d
		}
	}
}

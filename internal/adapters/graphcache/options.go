package graphcache

import (
	"time"

	"github.com/okian/prefrank/internal/domain/preference"
	"github.com/okian/prefrank/pkg/logger"
)

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithTTL sets how long a built graph stays live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithGraphOptions sets the options every built graph is created with.
func WithGraphOptions(opts ...preference.Option) Option {
	return func(c *Cache) {
		c.graphOpts = append(c.graphOpts, opts...)
	}
}

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

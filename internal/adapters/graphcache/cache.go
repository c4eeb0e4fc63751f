// Package graphcache owns one preference graph per (user, polarity), built
// lazily from stored records and dropped after a fixed time-to-live.
package graphcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/domain/preference"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

// defaultTTL is how long a built graph is trusted before it is rebuilt.
const defaultTTL = 24 * time.Hour

// Loader supplies every stored preference for a user and polarity.
type Loader interface {
	Preferences(ctx context.Context, userID model.UserID, polarity model.Polarity) ([]model.Edge, error)
}

// entry pairs a graph with the time it was built.
type entry struct {
	graph   *preference.Graph
	builtAt time.Time
}

// Cache holds live graphs keyed by (user, polarity). Lookups are safe for
// concurrent use; the graphs themselves are not, callers serialize per key.
type Cache struct {
	mu      sync.RWMutex
	entries map[model.Key]*entry
	group   singleflight.Group

	loader    Loader
	ttl       time.Duration
	now       func() time.Time
	graphOpts []preference.Option
	logger    logger.Logger
}

// New creates a cache that builds graphs from loader.
func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[model.Key]*entry),
		loader:  loader,
		ttl:     defaultTTL,
		now:     time.Now,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Graph returns the live graph for key, building it from the loader when
// missing or expired. Concurrent builds of the same key are collapsed.
func (c *Cache) Graph(ctx context.Context, key model.Key) (*preference.Graph, error) {
	if g, ok := c.Peek(key); ok {
		metrics.RecordCacheHit()
		return g, nil
	}
	metrics.RecordCacheMiss()

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Double-check after winning the singleflight race.
		if g, ok := c.Peek(key); ok {
			return g, nil
		}
		return c.build(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	g, ok := v.(*preference.Graph)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected singleflight result type %T", ErrBuildGraph, v)
	}
	return g, nil
}

func (c *Cache) build(ctx context.Context, key model.Key) (*preference.Graph, error) {
	start := time.Now()
	edges, err := c.loader.Preferences(ctx, key.UserID, key.Polarity)
	if err != nil {
		metrics.RecordErrorByComponent("graphcache", "load")
		return nil, fmt.Errorf("%w: %s: %w", ErrBuildGraph, key, err)
	}
	g := preference.Build(edges, c.graphOpts...)

	c.mu.Lock()
	now := c.now()
	c.entries[key] = &entry{graph: g, builtAt: now}
	evicted := c.evictExpiredLocked(now)
	size := len(c.entries)
	c.mu.Unlock()

	metrics.RecordGraphBuild(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordCacheEvictions(evicted)
	metrics.UpdateCachedGraphs(size)
	c.logger.Debug(ctx, "preference graph built",
		logger.String("key", key.String()),
		logger.Int("records", len(edges)),
		logger.Int("items", g.Len()),
		logger.Int("evicted", evicted),
	)
	return g, nil
}

// Peek returns the live graph for key without building it.
func (c *Cache) Peek(key model.Key) (*preference.Graph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e, c.now()) {
		return nil, false
	}
	return e.graph, true
}

// Invalidate drops the entry for key; the next access rebuilds it.
func (c *Cache) Invalidate(key model.Key) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	size := len(c.entries)
	c.mu.Unlock()

	if ok {
		metrics.RecordCacheInvalidation()
		metrics.UpdateCachedGraphs(size)
	}
}

// Snapshot captures the state of the graph for key.
func (c *Cache) Snapshot(ctx context.Context, key model.Key) (preference.Snapshot, error) {
	g, err := c.Graph(ctx, key)
	if err != nil {
		return preference.Snapshot{}, err
	}
	return g.Snapshot(), nil
}

// Restore puts the graph for key back to a previously captured state.
func (c *Cache) Restore(ctx context.Context, key model.Key, s preference.Snapshot) error {
	g, err := c.Graph(ctx, key)
	if err != nil {
		return err
	}
	g.Restore(s)
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every expired entry and returns how many were dropped.
func (c *Cache) Purge() int {
	c.mu.Lock()
	evicted := c.evictExpiredLocked(c.now())
	size := len(c.entries)
	c.mu.Unlock()

	metrics.RecordCacheEvictions(evicted)
	metrics.UpdateCachedGraphs(size)
	return evicted
}

// Run purges expired entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Purge(); n > 0 {
				c.logger.Debug(ctx, "expired graphs purged", logger.Int("evicted", n))
			}
		}
	}
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.builtAt) >= c.ttl
}

// evictExpiredLocked must be called with c.mu held for writing.
func (c *Cache) evictExpiredLocked(now time.Time) int {
	evicted := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			evicted++
		}
	}
	return evicted
}

// Package service provides the ranking coordinator: the public operations
// over per-user preference graphs, with per-key locking, persistence and
// background rank warm-up.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/prefrank/internal/adapters/graphcache"
	warmqueue "github.com/okian/prefrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/prefrank/internal/adapters/mq/worker"
	"github.com/okian/prefrank/internal/adapters/repository"
	"github.com/okian/prefrank/internal/domain/preference"
	"github.com/okian/prefrank/internal/domain/scoring"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

// Service coordinates rankings, judgments and placements for every
// (user, polarity) graph.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	cache     *graphcache.Cache
	locks     *keyLocks
	warmQueue warmqueue.Queue
	warmPool  *workerpool.Pool

	// Configuration
	cacheTTL          time.Duration
	purgeInterval     time.Duration
	convergenceFactor int
	nudgeMin          float64
	nudgeMax          float64
	reuseCoverage     float64
	reuseSizeDelta    int
	warmWorkers       int
	warmQueueSize     int

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the preference store. Without it the service keeps an
// in-memory store of its own.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCacheTTL sets how long a built graph stays cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithCachePurgeInterval sets how often expired graphs are purged once the
// service is started.
func WithCachePurgeInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.purgeInterval = interval
		}
	}
}

// WithConvergenceFactor sets the per-item pass budget of rank computation.
func WithConvergenceFactor(factor int) Option {
	return func(s *Service) {
		if factor > 0 {
			s.convergenceFactor = factor
		}
	}
}

// WithNudgeRange sets the random margin range used to separate scores.
func WithNudgeRange(minNudge, maxNudge float64) Option {
	return func(s *Service) {
		if minNudge > 0 && maxNudge > minNudge {
			s.nudgeMin = minNudge
			s.nudgeMax = maxNudge
		}
	}
}

// WithScoreReuse sets when prior scores seed a recomputation.
func WithScoreReuse(coverage float64, sizeDelta int) Option {
	return func(s *Service) {
		if coverage > 0 && coverage <= 1 && sizeDelta >= 0 {
			s.reuseCoverage = coverage
			s.reuseSizeDelta = sizeDelta
		}
	}
}

// WithWarmWorkers sets the number of rank warm-up workers.
func WithWarmWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.warmWorkers = count
		}
	}
}

// WithWarmQueueSize sets the capacity of the warm-up queue.
func WithWarmQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.warmQueueSize = size
		}
	}
}

// New constructs a Service. Graph operations work immediately; Start adds
// background warm-up and cache purging.
func New(opts ...Option) *Service {
	s := &Service{
		cacheTTL:          24 * time.Hour,
		purgeInterval:     time.Hour,
		convergenceFactor: 150,
		nudgeMin:          19,
		nudgeMax:          29,
		reuseCoverage:     0.7,
		reuseSizeDelta:    10,
		warmWorkers:       runtime.NumCPU(),
		warmQueueSize:     4096,
		locks:             newKeyLocks(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(context.Background())
		s.ownsStore = true
	}

	scorer := scoring.New(scoring.WithNudgeRange(s.nudgeMin, s.nudgeMax))
	s.cache = graphcache.New(s.store,
		graphcache.WithTTL(s.cacheTTL),
		graphcache.WithLogger(s.logger.Named("graphcache")),
		graphcache.WithGraphOptions(
			preference.WithScorer(scorer),
			preference.WithConvergenceFactor(s.convergenceFactor),
			preference.WithScoreReuse(s.reuseCoverage, s.reuseSizeDelta),
			preference.WithLogger(s.logger.Named("graph")),
		),
	)

	return s
}

// Start launches the warm-up workers and the cache purge loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting ranking service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.warmQueue = warmqueue.NewInMemoryQueue(warmqueue.WithCapacity(s.warmQueueSize))
	s.warmPool = workerpool.NewPool(s.warmWorkers, s.warmQueue, s)
	s.warmPool.Start(runCtx)

	go s.cache.Run(runCtx, s.purgeInterval)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("warmWorkers", s.warmWorkers),
		logger.Int("warmQueueSize", s.warmQueueSize),
		logger.Duration("cacheTTL", s.cacheTTL),
	)
	return nil
}

// Stop gracefully shuts down background work. Graph operations keep working
// without warm-up.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping ranking service...")

	if s.warmPool != nil {
		_ = s.warmPool.Shutdown(context.Background())
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.warmPool = nil
	s.warmQueue = nil
	s.started = false
	s.logger.Info(context.Background(), "ranking service stopped")
}

// Close stops the service and releases the store when the service owns it.
func (s *Service) Close() error {
	s.Stop()
	if !s.ownsStore {
		return nil
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stored := s.store.Count(ctx)
	cached := s.cache.Len()
	stats := map[string]interface{}{
		"started":           s.started,
		"cachedGraphs":      cached,
		"storedPreferences": stored,
		"lockedKeys":        s.locks.Len(),
		"warmWorkers":       s.warmWorkers,
		"warmQueueSize":     s.warmQueueSize,
	}

	if s.started {
		queueLen := s.warmQueue.Len(ctx)
		stats["warmQueueLength"] = queueLen
		stats["warmed"] = s.warmPool.Processed()
		metrics.UpdateQueueSize(queueLen)
	}

	metrics.UpdateCachedGraphs(cached)
	metrics.UpdateStoredPreferences(stored)
	return stats
}

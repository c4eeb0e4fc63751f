package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/pkg/metrics"
)

// pairKey identifies an unordered item pair.
type pairKey struct {
	lo, hi model.ItemID
}

func keyOf(e model.Edge) pairKey {
	lo, hi := e.Pair()
	return pairKey{lo: lo, hi: hi}
}

// record is the stored judgment for one pair.
type record struct {
	winner   model.ItemID
	loser    model.ItemID
	polarity model.Polarity
	seq      uint64
}

// MemoryStore is an in-memory Store guarded by a single RWMutex.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[model.UserID]map[pairKey]record
	total  int
	seq    uint64
	closed bool

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byUser:                make(map[model.UserID]map[pairKey]record),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stopChan)
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// Preferences implements Store.Preferences.
func (s *MemoryStore) Preferences(ctx context.Context, userID model.UserID, polarity model.Polarity) ([]model.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !polarity.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolarity, polarity)
	}
	start := time.Now()
	defer observe("preferences", start)

	s.mu.RLock()
	recs := make([]record, 0, len(s.byUser[userID]))
	for _, r := range s.byUser[userID] {
		if r.polarity == polarity {
			recs = append(recs, r)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(recs, func(a, b record) int { return cmp.Compare(a.seq, b.seq) })
	edges := make([]model.Edge, len(recs))
	for i, r := range recs {
		edges[i] = model.Edge{Winner: r.winner, Loser: r.loser}
	}
	return edges, nil
}

// Upsert implements Store.Upsert. The batch is validated before anything is
// written, so an invalid edge leaves the store unchanged.
func (s *MemoryStore) Upsert(ctx context.Context, userID model.UserID, polarity model.Polarity, edges []model.Edge) error {
	if err := s.validate(ctx, polarity, edges); err != nil {
		return err
	}
	start := time.Now()
	defer observe("upsert", start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	pairs, ok := s.byUser[userID]
	if !ok {
		pairs = make(map[pairKey]record)
		s.byUser[userID] = pairs
	}
	for _, e := range edges {
		k := keyOf(e)
		cur, exists := pairs[k]
		if exists && cur.winner == e.Winner && cur.polarity == polarity {
			continue
		}
		if !exists {
			s.seq++
			cur.seq = s.seq
			s.total++
		}
		cur.winner, cur.loser, cur.polarity = e.Winner, e.Loser, polarity
		pairs[k] = cur
	}
	return nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(ctx context.Context, userID model.UserID, polarity model.Polarity, edges []model.Edge) (int, error) {
	if err := s.validate(ctx, polarity, edges); err != nil {
		return 0, err
	}
	start := time.Now()
	defer observe("delete", start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	pairs := s.byUser[userID]
	removed := 0
	for _, e := range edges {
		k := keyOf(e)
		cur, ok := pairs[k]
		if !ok || cur.winner != e.Winner || cur.polarity != polarity {
			continue
		}
		delete(pairs, k)
		removed++
	}
	s.total -= removed
	if len(pairs) == 0 {
		delete(s.byUser, userID)
	}
	return removed, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func (s *MemoryStore) validate(ctx context.Context, polarity model.Polarity, edges []model.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !polarity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPolarity, polarity)
	}
	for _, e := range edges {
		if e.Winner == e.Loser {
			return fmt.Errorf("%w: %s", ErrInvalidEdge, e)
		}
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// startMetricsUpdater publishes the record count until ctx is done or the
// store is closed.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateStoredPreferences(s.Count(ctx))
			}
		}
	}()
}

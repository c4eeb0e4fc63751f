package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/domain/preference"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

func keyFor(userID model.UserID, polarity model.Polarity) (model.Key, error) {
	if !polarity.Valid() {
		return model.Key{}, fmt.Errorf("%w: %q", ErrInvalidPolarity, polarity)
	}
	return model.Key{UserID: userID, Polarity: polarity}, nil
}

// GetRankings returns item -> rank (1 best) for every item in the user's
// graph. Items never compared are absent.
func (s *Service) GetRankings(ctx context.Context, userID model.UserID, polarity model.Polarity) (map[model.ItemID]int, error) {
	key, err := keyFor(userID, polarity)
	if err != nil {
		return nil, err
	}
	// Rank computation writes the graph's memo, so it takes the write lock.
	unlock := s.locks.Lock(key)
	defer unlock()

	g, err := s.cache.Graph(ctx, key)
	if err != nil {
		return nil, err
	}
	return g.ComputeRankings(ctx), nil
}

// Standings returns the ranked items in rank order followed by every
// candidate that has no rank, labelled with the unranked sentinel.
func (s *Service) Standings(ctx context.Context, userID model.UserID, polarity model.Polarity, candidates []model.ItemID) ([]types.Entry, error) {
	ranks, err := s.GetRankings(ctx, userID, polarity)
	if err != nil {
		return nil, err
	}

	ranked := make([]model.ItemID, 0, len(ranks))
	for id := range ranks {
		ranked = append(ranked, id)
	}
	slices.SortFunc(ranked, func(a, b model.ItemID) int { return ranks[a] - ranks[b] })

	out := make([]types.Entry, 0, len(ranked)+len(candidates))
	for _, id := range ranked {
		out = append(out, types.RankedEntry(len(out)+1, id, ranks[id]))
	}
	seen := make(map[model.ItemID]struct{}, len(candidates))
	for _, id := range candidates {
		if _, ok := ranks[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, types.UnrankedEntry(len(out)+1, id))
	}
	return out, nil
}

// RecordJudgment records that winner beat the other of (itemA, itemB) under
// polarity. The judgment is rejected without side effects if it would make
// the graph cyclic. On success the edge is persisted, applied to the graph,
// and removed from the user's other polarity graph.
func (s *Service) RecordJudgment(ctx context.Context, userID model.UserID, itemA, itemB, winner model.ItemID, polarity model.Polarity) (model.Edge, error) {
	key, err := keyFor(userID, polarity)
	if err != nil {
		return model.Edge{}, err
	}
	if itemA == itemB {
		return model.Edge{}, fmt.Errorf("%w: %d", ErrSelfPreference, itemA)
	}
	var e model.Edge
	switch winner {
	case itemA:
		e = model.Edge{Winner: itemA, Loser: itemB}
	case itemB:
		e = model.Edge{Winner: itemB, Loser: itemA}
	default:
		return model.Edge{}, fmt.Errorf("%w: %d not in (%d, %d)", ErrInvalidWinner, winner, itemA, itemB)
	}

	if err := s.judge(ctx, key, e); err != nil {
		return model.Edge{}, err
	}

	s.enqueueWarm(ctx, key)
	metrics.RecordJudgment(string(polarity))
	return e, nil
}

// judge applies e and detaches it from the other polarity while holding
// both of the user's locks, so a concurrent judgment of the same pair under
// the other polarity is ordered entirely before or after this one.
func (s *Service) judge(ctx context.Context, key model.Key, e model.Edge) error {
	unlock := s.locks.LockUser(key.UserID)
	defer unlock()

	if err := s.applyJudgment(ctx, key, e); err != nil {
		return err
	}
	s.detach(ctx, key.Other(), []model.Edge{e})
	return nil
}

func (s *Service) applyJudgment(ctx context.Context, key model.Key, e model.Edge) error {
	g, err := s.cache.Graph(ctx, key)
	if err != nil {
		return err
	}
	if g.CreatesCycle(e.Winner, e.Loser) {
		metrics.RecordCycleRejection("judgment")
		s.logger.Debug(ctx, "judgment rejected",
			logger.String("key", key.String()),
			logger.String("edge", e.String()),
		)
		return fmt.Errorf("%w: %s", ErrCycleRejected, e)
	}

	if err := s.store.Upsert(ctx, key.UserID, key.Polarity, []model.Edge{e}); err != nil {
		metrics.RecordPersistFailure()
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	g.AddPreference(e.Winner, e.Loser)
	return nil
}

// detach drops the pairs of edges from the cached graph of key. Graphs not
// in the cache are rebuilt from the store, which already moved the records.
// The caller holds the lock of key.
func (s *Service) detach(ctx context.Context, key model.Key, edges []model.Edge) {
	if len(edges) == 0 {
		return
	}
	g, ok := s.cache.Peek(key)
	if !ok {
		return
	}
	for _, e := range edges {
		if g.RemovePreference(e.Winner, e.Loser) {
			s.logger.Debug(ctx, "cross-polarity edge removed",
				logger.String("key", key.String()),
				logger.String("edge", e.String()),
			)
		}
	}
}

// ForcePlacement moves item directly below above and/or directly above
// below. The placement is applied all-or-nothing: if the result is cyclic
// the graph is restored and ErrCycleRejected is returned.
func (s *Service) ForcePlacement(ctx context.Context, userID model.UserID, item model.ItemID, above, below *model.ItemID, polarity model.Polarity) (preference.Placement, error) {
	key, err := keyFor(userID, polarity)
	if err != nil {
		return preference.Placement{}, err
	}

	p, err := s.place(ctx, key, item, above, below)
	if err != nil {
		return preference.Placement{}, err
	}

	s.enqueueWarm(ctx, key)
	metrics.RecordPlacement("committed")
	return p, nil
}

// place runs the placement and the cross-polarity cleanup under both of
// the user's locks.
func (s *Service) place(ctx context.Context, key model.Key, item model.ItemID, above, below *model.ItemID) (preference.Placement, error) {
	unlock := s.locks.LockUser(key.UserID)
	defer unlock()

	p, err := s.applyPlacement(ctx, key, item, above, below)
	if err != nil {
		return preference.Placement{}, err
	}
	s.detach(ctx, key.Other(), p.Persist())
	return p, nil
}

func (s *Service) applyPlacement(ctx context.Context, key model.Key, item model.ItemID, above, below *model.ItemID) (preference.Placement, error) {
	snap, err := s.cache.Snapshot(ctx, key)
	if err != nil {
		return preference.Placement{}, err
	}
	g, err := s.cache.Graph(ctx, key)
	if err != nil {
		return preference.Placement{}, err
	}

	p, err := g.ForcePlacement(item, above, below)
	if err != nil {
		metrics.RecordPlacement("invalid")
		return preference.Placement{}, fmt.Errorf("%w: %w", ErrInvalidPlacement, err)
	}

	if g.HasCycle() {
		if err := s.cache.Restore(ctx, key, snap); err != nil {
			s.cache.Invalidate(key)
			return preference.Placement{}, err
		}
		metrics.RecordPlacement("rejected")
		metrics.RecordCycleRejection("placement")
		s.logger.Debug(ctx, "placement rejected",
			logger.String("key", key.String()),
			logger.Int64("item", int64(item)),
		)
		return preference.Placement{}, fmt.Errorf("%w: placement of %d", ErrCycleRejected, item)
	}

	// Severed edges go first: the store then only ever holds a subset of
	// the old edges or the new graph, and both are acyclic.
	if _, err := s.store.Delete(ctx, key.UserID, key.Polarity, p.Removed); err != nil {
		metrics.RecordPersistFailure()
		s.cache.Invalidate(key)
		return preference.Placement{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := s.store.Upsert(ctx, key.UserID, key.Polarity, p.Persist()); err != nil {
		metrics.RecordPersistFailure()
		if len(p.Removed) > 0 {
			if rerr := s.store.Upsert(ctx, key.UserID, key.Polarity, p.Removed); rerr != nil {
				s.cache.Invalidate(key)
				return preference.Placement{}, fmt.Errorf("%w: %w", ErrPersist, err)
			}
		}
		if rerr := s.cache.Restore(ctx, key, snap); rerr != nil {
			s.cache.Invalidate(key)
		}
		return preference.Placement{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return p, nil
}

// SuggestMatchup proposes the next pair to compare, or false when no safe
// comparison remains in this polarity.
func (s *Service) SuggestMatchup(ctx context.Context, userID model.UserID, polarity model.Polarity) (model.Matchup, bool, error) {
	key, err := keyFor(userID, polarity)
	if err != nil {
		return model.Matchup{}, false, err
	}
	unlock := s.locks.RLock(key)
	defer unlock()

	g, err := s.cache.Graph(ctx, key)
	if err != nil {
		return model.Matchup{}, false, err
	}
	m, ok := g.SuggestMatchup()
	metrics.RecordMatchupSuggestion(ok)
	return m, ok, nil
}

// AnchorItem returns the item of average out-degree, a reasonable first
// opponent for a brand-new item. False when the graph is empty.
func (s *Service) AnchorItem(ctx context.Context, userID model.UserID, polarity model.Polarity) (model.ItemID, bool, error) {
	key, err := keyFor(userID, polarity)
	if err != nil {
		return 0, false, err
	}
	unlock := s.locks.RLock(key)
	defer unlock()

	g, err := s.cache.Graph(ctx, key)
	if err != nil {
		return 0, false, err
	}
	id, ok := g.AvgDegreeItem()
	return id, ok, nil
}

// HasCycle reports whether the user's graph contains a cycle.
func (s *Service) HasCycle(ctx context.Context, userID model.UserID, polarity model.Polarity) (bool, error) {
	key, err := keyFor(userID, polarity)
	if err != nil {
		return false, err
	}
	unlock := s.locks.RLock(key)
	defer unlock()

	g, err := s.cache.Graph(ctx, key)
	if err != nil {
		return false, err
	}
	return g.HasCycle(), nil
}

// WillCreateCycle reports whether either orientation of (a, b) would make
// the user's graph cyclic.
func (s *Service) WillCreateCycle(ctx context.Context, userID model.UserID, a, b model.ItemID, polarity model.Polarity) (bool, error) {
	key, err := keyFor(userID, polarity)
	if err != nil {
		return false, err
	}
	unlock := s.locks.RLock(key)
	defer unlock()

	g, err := s.cache.Graph(ctx, key)
	if err != nil {
		return false, err
	}
	return g.WillCreateCycle(a, b), nil
}

// Invalidate drops the cached graph so the next access rebuilds it from the
// store. Use after the store was changed behind the service's back.
func (s *Service) Invalidate(userID model.UserID, polarity model.Polarity) error {
	key, err := keyFor(userID, polarity)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(key)
	defer unlock()

	s.cache.Invalidate(key)
	return nil
}

// Warm recomputes the rankings of key so the next read hits the memo.
func (s *Service) Warm(ctx context.Context, key model.Key) error {
	start := time.Now()
	if _, err := s.GetRankings(ctx, key.UserID, key.Polarity); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	s.logger.Debug(ctx, "rankings warmed",
		logger.String("key", key.String()),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

func (s *Service) enqueueWarm(ctx context.Context, key model.Key) {
	s.mu.RLock()
	q := s.warmQueue
	s.mu.RUnlock()

	if q == nil {
		return
	}
	if !q.Enqueue(ctx, key) {
		s.logger.Debug(ctx, "warm-up skipped, queue unavailable", logger.String("key", key.String()))
	}
}

// Package simulate drives a ranker with synthetic users that answer every
// comparison from a hidden true order, then checks the resulting standings.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	service "github.com/okian/prefrank/internal/app"
	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/pkg/logger"
)

// counters are shared by every user goroutine.
type counters struct {
	seeded    atomic.Int64
	judgments atomic.Int64
	rejected  atomic.Int64
	exhausted atomic.Int64
}

// Run simulates cfg.Users users against r and verifies each one.
func Run(ctx context.Context, r Ranker, cfg Config) (*Stats, error) {
	if cfg.Users <= 0 || cfg.Items < 2 || cfg.Judgments < 0 || !cfg.Polarity.Valid() {
		return nil, fmt.Errorf("%w: users=%d items=%d judgments=%d polarity=%q",
			ErrInvalidConfig, cfg.Users, cfg.Items, cfg.Judgments, cfg.Polarity)
	}
	log := logger.Get().Named("simulate")
	log.Info(ctx, "starting simulation",
		logger.Int("users", cfg.Users),
		logger.Int("items", cfg.Items),
		logger.Int("judgments", cfg.Judgments),
		logger.Int("workers", cfg.Workers),
		logger.String("polarity", string(cfg.Polarity)))

	start := time.Now()
	var c counters
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i := range cfg.Users {
		u := &user{
			id:     model.UserID(uuid.NewString()),
			hidden: rand.New(rand.NewPCG(cfg.Seed, uint64(i))).Perm(cfg.Items),
			cfg:    cfg,
			c:      &c,
		}
		g.Go(func() error {
			if err := u.run(gctx, r); err != nil {
				return fmt.Errorf("user %s: %w", u.id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &Stats{
		Users:     cfg.Users,
		Seeded:    int(c.seeded.Load()),
		Judgments: int(c.judgments.Load()),
		Rejected:  int(c.rejected.Load()),
		Exhausted: int(c.exhausted.Load()),
		Duration:  time.Since(start),
	}
	log.Info(ctx, "final statistics",
		logger.Int("users", stats.Users),
		logger.Int("seeded", stats.Seeded),
		logger.Int("judgments", stats.Judgments),
		logger.Int("rejected", stats.Rejected),
		logger.Int("exhausted", stats.Exhausted),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

type user struct {
	id     model.UserID
	hidden []int // hidden[item-1] is the item's true position, 0 best
	cfg    Config
	c      *counters
	edges  []model.Edge
}

func (u *user) better(a, b model.ItemID) model.ItemID {
	if u.hidden[a-1] < u.hidden[b-1] {
		return a
	}
	return b
}

func (u *user) judge(ctx context.Context, r Ranker, a, b model.ItemID) error {
	e, err := r.RecordJudgment(ctx, u.id, a, b, u.better(a, b), u.cfg.Polarity)
	if errors.Is(err, service.ErrCycleRejected) {
		u.c.rejected.Add(1)
		return nil
	}
	if err != nil {
		return err
	}
	u.edges = append(u.edges, e)
	return nil
}

func (u *user) run(ctx context.Context, r Ranker) error {
	pol := u.cfg.Polarity

	// Seed: every new item is compared once against the current anchor.
	for i := 2; i <= u.cfg.Items; i++ {
		item := model.ItemID(i)
		anchor, ok, err := r.AnchorItem(ctx, u.id, pol)
		if err != nil {
			return err
		}
		if !ok {
			anchor = 1
		}
		if err := u.judge(ctx, r, anchor, item); err != nil {
			return err
		}
		u.c.seeded.Add(1)
	}

	exhausted := false
	for n := 0; u.cfg.Judgments == 0 || n < u.cfg.Judgments; n++ {
		m, ok, err := r.SuggestMatchup(ctx, u.id, pol)
		if err != nil {
			return err
		}
		if !ok {
			exhausted = true
			break
		}
		if err := u.judge(ctx, r, m.A, m.B); err != nil {
			return err
		}
		u.c.judgments.Add(1)
	}
	if exhausted {
		u.c.exhausted.Add(1)
	}
	return u.verify(ctx, r, exhausted)
}

// verify checks the graph is acyclic, every recorded winner stands above
// its loser and, once matchmaking is exhausted, the standings equal the
// hidden order.
func (u *user) verify(ctx context.Context, r Ranker, exhausted bool) error {
	cyclic, err := r.HasCycle(ctx, u.id, u.cfg.Polarity)
	if err != nil {
		return err
	}
	if cyclic {
		return fmt.Errorf("%w: graph has a cycle", ErrInconsistent)
	}

	entries, err := r.Standings(ctx, u.id, u.cfg.Polarity, nil)
	if err != nil {
		return err
	}
	pos := make(map[model.ItemID]int, len(entries))
	for _, e := range entries {
		pos[e.ItemID] = e.Position
	}
	for _, e := range u.edges {
		if pos[e.Winner] == 0 || pos[e.Winner] >= pos[e.Loser] {
			return fmt.Errorf("%w: %d beat %d but stands at %d vs %d",
				ErrInconsistent, e.Winner, e.Loser, pos[e.Winner], pos[e.Loser])
		}
	}
	if !exhausted {
		return nil
	}

	want := make([]model.ItemID, u.cfg.Items)
	for i, p := range u.hidden {
		want[p] = model.ItemID(i + 1)
	}
	got := make([]model.ItemID, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.ItemID)
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("%w: standings %v, hidden order %v", ErrInconsistent, got, want)
	}
	return nil
}

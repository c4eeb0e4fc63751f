package graphcache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/prefrank/internal/adapters/graphcache"
	"github.com/okian/prefrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeLoader struct {
	mu    sync.Mutex
	calls atomic.Int64
	data  map[model.Key][]model.Edge
	err   error
	delay time.Duration
}

func (f *fakeLoader) Preferences(_ context.Context, user model.UserID, pol model.Polarity) ([]model.Edge, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Edge(nil), f.data[model.Key{UserID: user, Polarity: pol}]...), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var (
	liked    = model.Key{UserID: "u1", Polarity: model.Liked}
	disliked = model.Key{UserID: "u1", Polarity: model.Disliked}
)

func TestCache_Graph(t *testing.T) {
	Convey("Given a cache over stored preferences", t, func() {
		ctx := context.Background()
		loader := &fakeLoader{data: map[model.Key][]model.Edge{
			liked:    {{Winner: 1, Loser: 2}, {Winner: 2, Loser: 3}},
			disliked: {{Winner: 9, Loser: 8}},
		}}
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		c := graphcache.New(loader, graphcache.WithTTL(time.Hour), graphcache.WithClock(clock.Now))

		Convey("When a graph is requested for the first time", func() {
			g, err := c.Graph(ctx, liked)

			Convey("Then it should be built from the stored records", func() {
				So(err, ShouldBeNil)
				So(g.HasEdge(1, 2), ShouldBeTrue)
				So(g.HasEdge(2, 3), ShouldBeTrue)
				So(loader.calls.Load(), ShouldEqual, int64(1))
				So(c.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the same key is requested again within the TTL", func() {
			first, _ := c.Graph(ctx, liked)
			clock.Advance(59 * time.Minute)
			second, err := c.Graph(ctx, liked)

			Convey("Then the same graph should be returned without a reload", func() {
				So(err, ShouldBeNil)
				So(second, ShouldPointTo, first)
				So(loader.calls.Load(), ShouldEqual, int64(1))
			})
		})

		Convey("When the polarities are requested separately", func() {
			l, _ := c.Graph(ctx, liked)
			d, _ := c.Graph(ctx, disliked)

			Convey("Then each should own an independent graph", func() {
				So(l, ShouldNotPointTo, d)
				So(d.HasEdge(9, 8), ShouldBeTrue)
				So(l.Contains(9), ShouldBeFalse)
			})
		})

		Convey("When the TTL elapses", func() {
			first, _ := c.Graph(ctx, liked)
			clock.Advance(time.Hour)
			_, ok := c.Peek(liked)
			second, err := c.Graph(ctx, liked)

			Convey("Then the entry should be rebuilt", func() {
				So(ok, ShouldBeFalse)
				So(err, ShouldBeNil)
				So(second, ShouldNotPointTo, first)
				So(loader.calls.Load(), ShouldEqual, int64(2))
			})
		})

		Convey("When another key is built after one expired", func() {
			_, _ = c.Graph(ctx, liked)
			clock.Advance(2 * time.Hour)
			_, _ = c.Graph(ctx, disliked)

			Convey("Then the expired entry should be evicted", func() {
				So(c.Len(), ShouldEqual, 1)
			})
		})

		Convey("When an entry is invalidated", func() {
			first, _ := c.Graph(ctx, liked)
			c.Invalidate(liked)
			second, _ := c.Graph(ctx, liked)

			Convey("Then the next access should rebuild it", func() {
				So(second, ShouldNotPointTo, first)
				So(loader.calls.Load(), ShouldEqual, int64(2))
			})
		})
	})

	Convey("Given a loader that fails", t, func() {
		boom := errors.New("storage offline")
		c := graphcache.New(&fakeLoader{err: boom})

		Convey("When a graph is requested", func() {
			g, err := c.Graph(context.Background(), liked)

			Convey("Then the build error should wrap the cause", func() {
				So(g, ShouldBeNil)
				So(errors.Is(err, graphcache.ErrBuildGraph), ShouldBeTrue)
				So(errors.Is(err, boom), ShouldBeTrue)
				So(c.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestCache_ConcurrentBuild(t *testing.T) {
	Convey("Given many callers asking for a cold key at once", t, func() {
		loader := &fakeLoader{
			data:  map[model.Key][]model.Edge{liked: {{Winner: 1, Loser: 2}}},
			delay: 20 * time.Millisecond,
		}
		c := graphcache.New(loader)

		var wg sync.WaitGroup
		var failures atomic.Int64
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.Graph(context.Background(), liked); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then the loader should run exactly once", func() {
			So(failures.Load(), ShouldEqual, int64(0))
			So(loader.calls.Load(), ShouldEqual, int64(1))
		})
	})
}

func TestCache_SnapshotRestore(t *testing.T) {
	Convey("Given a cached graph", t, func() {
		ctx := context.Background()
		loader := &fakeLoader{data: map[model.Key][]model.Edge{liked: {{Winner: 1, Loser: 2}}}}
		c := graphcache.New(loader)

		snap, err := c.Snapshot(ctx, liked)
		So(err, ShouldBeNil)

		Convey("When it is mutated and restored", func() {
			g, _ := c.Graph(ctx, liked)
			g.AddPreference(2, 3)
			So(c.Restore(ctx, liked, snap), ShouldBeNil)

			Convey("Then the mutation should be undone", func() {
				So(g.HasEdge(2, 3), ShouldBeFalse)
				So(g.HasEdge(1, 2), ShouldBeTrue)
			})
		})
	})
}

func TestCache_Purge(t *testing.T) {
	Convey("Given a cache with one stale and one fresh entry", t, func() {
		ctx := context.Background()
		loader := &fakeLoader{data: map[model.Key][]model.Edge{}}
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := graphcache.New(loader, graphcache.WithTTL(time.Minute), graphcache.WithClock(clock.Now))

		_, _ = c.Graph(ctx, liked)
		clock.Advance(50 * time.Second)
		c.Invalidate(disliked)
		_, _ = c.Graph(ctx, disliked)
		clock.Advance(20 * time.Second)

		Convey("When purged", func() {
			n := c.Purge()

			Convey("Then only the stale entry should go", func() {
				So(n, ShouldEqual, 1)
				_, ok := c.Peek(disliked)
				So(ok, ShouldBeTrue)
			})
		})
	})
}

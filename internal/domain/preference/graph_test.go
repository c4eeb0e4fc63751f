package preference_test

import (
	"context"
	"testing"

	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/domain/preference"
	. "github.com/smartystreets/goconvey/convey"
)

func edge(w, l model.ItemID) model.Edge { return model.Edge{Winner: w, Loser: l} }

func TestGraph_AddPreference(t *testing.T) {
	Convey("Given an empty graph", t, func() {
		g := preference.New()

		Convey("When a preference is recorded", func() {
			g.AddPreference(1, 2)

			Convey("Then both items should become nodes joined by one edge", func() {
				So(g.Len(), ShouldEqual, 2)
				So(g.HasEdge(1, 2), ShouldBeTrue)
				So(g.HasEdge(2, 1), ShouldBeFalse)
				So(g.Dirty(), ShouldBeTrue)
			})
		})

		Convey("When the same preference is recorded twice", func() {
			g.AddPreference(1, 2)
			once := g.Edges()
			_ = g.ComputeRankings(context.Background())
			g.AddPreference(1, 2)

			Convey("Then the adjacency should be unchanged and stay clean", func() {
				So(g.Edges(), ShouldResemble, once)
				So(g.Dirty(), ShouldBeFalse)
			})
		})

		Convey("When the opposite judgment is recorded", func() {
			g.AddPreference(1, 2)
			g.AddPreference(2, 1)

			Convey("Then the old direction should be replaced", func() {
				So(g.Edges(), ShouldResemble, []model.Edge{edge(2, 1)})
			})
		})

		Convey("When an item is compared with itself", func() {
			g.AddPreference(3, 3)

			Convey("Then nothing should be recorded", func() {
				So(g.Len(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given stored records replayed in order", t, func() {
		g := preference.Build([]model.Edge{edge(1, 2), edge(2, 3), edge(2, 1)})

		Convey("Then later duplicates of a pair should win", func() {
			So(g.Edges(), ShouldResemble, []model.Edge{edge(2, 1), edge(2, 3)})
		})
	})
}

func TestGraph_RemovePreference(t *testing.T) {
	Convey("Given a graph 1>2, 2>3, 4>3", t, func() {
		g := preference.Build([]model.Edge{edge(1, 2), edge(2, 3), edge(4, 3)})

		Convey("When removing with the pair given in reverse order", func() {
			removed := g.RemovePreference(2, 1)

			Convey("Then the edge should go and the isolated winner with it", func() {
				So(removed, ShouldBeTrue)
				So(g.HasEdge(1, 2), ShouldBeFalse)
				So(g.Contains(1), ShouldBeFalse)
				So(g.Contains(2), ShouldBeTrue)
			})
		})

		Convey("When removing an edge whose endpoints have other edges", func() {
			removed := g.RemovePreference(2, 3)

			Convey("Then only the isolated endpoint should be dropped", func() {
				So(removed, ShouldBeTrue)
				So(g.Contains(2), ShouldBeTrue) // still beaten by 1
				So(g.Contains(3), ShouldBeTrue) // still beaten by 4
			})
		})

		Convey("When removing a pair with no edge", func() {
			removed := g.RemovePreference(1, 4)

			Convey("Then nothing should change", func() {
				So(removed, ShouldBeFalse)
				So(g.EdgeCount(), ShouldEqual, 3)
			})
		})
	})
}

func TestGraph_Cycles(t *testing.T) {
	Convey("Given A>B and B>C", t, func() {
		const a, b, c = 1, 2, 3
		g := preference.Build([]model.Edge{edge(a, b), edge(b, c)})

		Convey("Then the graph should be acyclic", func() {
			So(g.HasCycle(), ShouldBeFalse)
		})

		Convey("Then A beats C should be accepted and C beats A rejected", func() {
			So(g.CreatesCycle(a, c), ShouldBeFalse)
			So(g.CreatesCycle(c, a), ShouldBeTrue)
		})

		Convey("Then the pair should be flagged when either orientation cycles", func() {
			So(g.WillCreateCycle(a, c), ShouldBeTrue)
			So(g.WillCreateCycle(c, a), ShouldBeTrue)
		})

		Convey("Then flipping a direct edge should be judged on its replacement", func() {
			// B>A replaces A>B, leaving B>C and B>A: no cycle.
			So(g.CreatesCycle(b, a), ShouldBeFalse)
		})

		Convey("Then unknown items should never cycle", func() {
			So(g.WillCreateCycle(a, 99), ShouldBeFalse)
		})

		Convey("Then the real graph should be untouched by the checks", func() {
			_ = g.WillCreateCycle(c, a)
			So(g.Edges(), ShouldResemble, []model.Edge{edge(a, b), edge(b, c)})
		})

		Convey("When a cycle is forced in directly", func() {
			g.AddPreference(c, a)

			Convey("Then it should be detected", func() {
				So(g.HasCycle(), ShouldBeTrue)
			})
		})
	})

	Convey("Given two disjoint components, the second cyclic", t, func() {
		g := preference.Build([]model.Edge{edge(1, 2), edge(10, 11), edge(11, 12), edge(12, 10)})

		Convey("Then the cycle should still be found", func() {
			So(g.HasCycle(), ShouldBeTrue)
		})
	})

	Convey("Given a long chain", t, func() {
		g := preference.New()
		for i := model.ItemID(1); i < 5000; i++ {
			g.AddPreference(i, i+1)
		}

		Convey("Then cycle checks should not depend on recursion depth", func() {
			So(g.HasCycle(), ShouldBeFalse)
			So(g.CreatesCycle(5000, 1), ShouldBeTrue)
		})
	})
}

func TestGraph_Snapshot(t *testing.T) {
	Convey("Given a graph with computed rankings", t, func() {
		ctx := context.Background()
		g := preference.Build([]model.Edge{edge(1, 2), edge(2, 3)})
		before := g.ComputeRankings(ctx)
		snap := g.Snapshot()

		Convey("When the graph is mutated and restored", func() {
			g.AddPreference(3, 4)
			g.RemovePreference(1, 2)
			g.Restore(snap)

			Convey("Then adjacency and rankings should match the snapshot", func() {
				So(g.Edges(), ShouldResemble, []model.Edge{edge(1, 2), edge(2, 3)})
				So(g.Dirty(), ShouldBeFalse)
				So(g.ComputeRankings(ctx), ShouldResemble, before)
			})
		})

		Convey("When the snapshot is restored twice", func() {
			g.Restore(snap)
			g.AddPreference(5, 6)
			g.Restore(snap)

			Convey("Then the snapshot should not have been aliased", func() {
				So(snap.Len(), ShouldEqual, 3)
				So(g.Contains(5), ShouldBeFalse)
			})
		})
	})
}

func TestGraph_AvgDegreeItem(t *testing.T) {
	Convey("Given an empty graph", t, func() {
		_, ok := preference.New().AvgDegreeItem()
		So(ok, ShouldBeFalse)
	})

	Convey("Given 1 beating everyone else", t, func() {
		// out-degrees: 1->3, 2->1, others 0; mean 4/5 = 0.8
		g := preference.Build([]model.Edge{edge(1, 2), edge(1, 3), edge(1, 4), edge(2, 5)})

		Convey("Then the item closest to the mean out-degree should be chosen", func() {
			id, ok := g.AvgDegreeItem()
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, 2)
		})
	})
}

// Package preference implements the per-user preference graph: a directed
// acyclic graph of pairwise judgments (winner -> loser) from which a total
// ranking is derived.
//
// A Graph is not safe for concurrent use. Callers serialize access per
// graph; see the service package for the locking discipline.
package preference

import (
	"maps"
	"slices"

	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/domain/scoring"
	"github.com/okian/prefrank/pkg/logger"
)

// Default graph configuration constants.
const (
	defaultConvergenceFactor = 150
	defaultReuseCoverage     = 0.7
	defaultReuseSizeDelta    = 10
)

type itemSet map[model.ItemID]struct{}

// Graph holds one user's preferences for one polarity.
type Graph struct {
	adj map[model.ItemID]itemSet

	// Memoized output of the last ComputeRankings call.
	scores map[model.ItemID]float64
	ranks  map[model.ItemID]int
	dirty  bool

	scorer            *scoring.Scorer
	convergenceFactor int
	reuseCoverage     float64
	reuseSizeDelta    int
	logger            logger.Logger
}

// New creates an empty graph with configuration options.
func New(opts ...Option) *Graph {
	g := &Graph{
		adj:               make(map[model.ItemID]itemSet),
		scorer:            scoring.New(),
		convergenceFactor: defaultConvergenceFactor,
		reuseCoverage:     defaultReuseCoverage,
		reuseSizeDelta:    defaultReuseSizeDelta,
		logger:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Build creates a graph by replaying edges in order through AddPreference.
func Build(edges []model.Edge, opts ...Option) *Graph {
	g := New(opts...)
	for _, e := range edges {
		g.AddPreference(e.Winner, e.Loser)
	}
	return g
}

// AddPreference records that winner is preferred over loser. An existing
// edge in the opposite direction is replaced. Recording the same preference
// twice is a no-op. Self preferences are ignored.
func (g *Graph) AddPreference(winner, loser model.ItemID) {
	if winner == loser {
		return
	}
	g.ensure(winner)
	g.ensure(loser)
	if _, ok := g.adj[loser][winner]; ok {
		delete(g.adj[loser], winner)
		g.dirty = true
	}
	if _, ok := g.adj[winner][loser]; !ok {
		g.adj[winner][loser] = struct{}{}
		g.dirty = true
	}
}

// RemovePreference removes the edge between a and b in whichever direction
// it exists. Endpoints left without any edge are dropped from the graph.
// It reports whether an edge was removed.
func (g *Graph) RemovePreference(a, b model.ItemID) bool {
	switch {
	case g.HasEdge(a, b):
		delete(g.adj[a], b)
	case g.HasEdge(b, a):
		delete(g.adj[b], a)
	default:
		return false
	}
	g.dirty = true
	g.collect(a)
	g.collect(b)
	return true
}

// HasEdge reports whether winner -> loser is recorded.
func (g *Graph) HasEdge(winner, loser model.ItemID) bool {
	_, ok := g.adj[winner][loser]
	return ok
}

// Contains reports whether the item is a node of the graph.
func (g *Graph) Contains(id model.ItemID) bool {
	_, ok := g.adj[id]
	return ok
}

// Len returns the number of items in the graph.
func (g *Graph) Len() int {
	return len(g.adj)
}

// EdgeCount returns the number of recorded preferences.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, losers := range g.adj {
		n += len(losers)
	}
	return n
}

// Items returns all items in ascending id order.
func (g *Graph) Items() []model.ItemID {
	items := make([]model.ItemID, 0, len(g.adj))
	for id := range g.adj {
		items = append(items, id)
	}
	slices.Sort(items)
	return items
}

// Edges returns all recorded preferences ordered by winner then loser.
func (g *Graph) Edges() []model.Edge {
	edges := make([]model.Edge, 0, g.EdgeCount())
	for _, w := range g.Items() {
		for _, l := range g.successors(w) {
			edges = append(edges, model.Edge{Winner: w, Loser: l})
		}
	}
	return edges
}

// Dirty reports whether a mutation happened since the last rank computation.
func (g *Graph) Dirty() bool {
	return g.dirty
}

// degrees returns out-degree (wins) and in-degree (losses) per item.
func (g *Graph) degrees() (map[model.ItemID]int, map[model.ItemID]int) {
	wins := make(map[model.ItemID]int, len(g.adj))
	losses := make(map[model.ItemID]int, len(g.adj))
	for w, losers := range g.adj {
		wins[w] = len(losers)
		for l := range losers {
			losses[l]++
		}
	}
	return wins, losses
}

// successors returns the items id beats in ascending order.
func (g *Graph) successors(id model.ItemID) []model.ItemID {
	losers := g.adj[id]
	out := make([]model.ItemID, 0, len(losers))
	for l := range losers {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

func (g *Graph) ensure(id model.ItemID) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(itemSet)
	}
}

func (g *Graph) hasIncoming(id model.ItemID) bool {
	for _, losers := range g.adj {
		if _, ok := losers[id]; ok {
			return true
		}
	}
	return false
}

// collect drops id when it has neither outgoing nor incoming edges.
func (g *Graph) collect(id model.ItemID) {
	losers, ok := g.adj[id]
	if !ok || len(losers) > 0 || g.hasIncoming(id) {
		return
	}
	delete(g.adj, id)
	g.dirty = true
}

// Snapshot is an owned deep copy of a graph's state.
type Snapshot struct {
	adj    map[model.ItemID]itemSet
	scores map[model.ItemID]float64
	ranks  map[model.ItemID]int
	dirty  bool
}

// Len returns the number of items captured in the snapshot.
func (s Snapshot) Len() int {
	return len(s.adj)
}

// Snapshot captures the adjacency structure and the memoized ranking.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{
		adj:    cloneAdj(g.adj),
		scores: maps.Clone(g.scores),
		ranks:  maps.Clone(g.ranks),
		dirty:  g.dirty,
	}
}

// Restore replaces the graph's state with a copy of s.
func (g *Graph) Restore(s Snapshot) {
	g.adj = cloneAdj(s.adj)
	if g.adj == nil {
		g.adj = make(map[model.ItemID]itemSet)
	}
	g.scores = maps.Clone(s.scores)
	g.ranks = maps.Clone(s.ranks)
	g.dirty = s.dirty
}

func cloneAdj(adj map[model.ItemID]itemSet) map[model.ItemID]itemSet {
	if adj == nil {
		return nil
	}
	out := make(map[model.ItemID]itemSet, len(adj))
	for id, losers := range adj {
		cp := make(itemSet, len(losers))
		for l := range losers {
			cp[l] = struct{}{}
		}
		out[id] = cp
	}
	return out
}

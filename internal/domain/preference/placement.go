package preference

import (
	"github.com/okian/prefrank/internal/domain/model"
)

// Placement describes the edge changes made by ForcePlacement.
type Placement struct {
	// Anchored are the explicit above -> item and item -> below edges.
	Anchored []model.Edge
	// Bridged connect the item's former winners directly to its former
	// losers so the ordering they implied survives the move.
	Bridged []model.Edge
	// Removed are the item's former edges that no longer exist.
	Removed []model.Edge
}

// Persist returns every edge that now exists because of the placement.
func (p Placement) Persist() []model.Edge {
	out := make([]model.Edge, 0, len(p.Anchored)+len(p.Bridged))
	out = append(out, p.Anchored...)
	return append(out, p.Bridged...)
}

// ForcePlacement moves item directly below above and/or directly above
// below. Either anchor may be nil, not both.
//
// All edges touching item are dropped, the anchor edges are added, and
// every former winner over item is linked to every former loser to item.
// The result may contain a cycle when the requested position contradicts
// an existing indirect ordering; callers must check HasCycle and Restore
// a snapshot taken beforehand.
func (g *Graph) ForcePlacement(item model.ItemID, above, below *model.ItemID) (Placement, error) {
	if above == nil && below == nil {
		return Placement{}, ErrNoAnchor
	}
	if (above != nil && *above == item) || (below != nil && *below == item) {
		return Placement{}, ErrSelfPreference
	}
	if above != nil && below != nil && *above == *below {
		return Placement{}, ErrConflictingAnchors
	}

	var winners []model.ItemID
	for _, w := range g.Items() {
		if g.HasEdge(w, item) {
			winners = append(winners, w)
		}
	}
	losers := g.successors(item)

	for _, w := range winners {
		delete(g.adj[w], item)
	}
	g.adj[item] = make(itemSet)
	g.dirty = true

	var p Placement
	if above != nil {
		e := model.Edge{Winner: *above, Loser: item}
		g.AddPreference(e.Winner, e.Loser)
		p.Anchored = append(p.Anchored, e)
	}
	if below != nil {
		e := model.Edge{Winner: item, Loser: *below}
		g.AddPreference(e.Winner, e.Loser)
		p.Anchored = append(p.Anchored, e)
	}

	for _, w := range winners {
		for _, l := range losers {
			if w == l || g.HasEdge(w, l) {
				continue
			}
			g.AddPreference(w, l)
			p.Bridged = append(p.Bridged, model.Edge{Winner: w, Loser: l})
		}
	}

	// Former neighbours may now be isolated.
	for _, w := range winners {
		g.collect(w)
	}
	for _, l := range losers {
		g.collect(l)
	}

	for _, w := range winners {
		g.markRemoved(&p, model.Edge{Winner: w, Loser: item})
	}
	for _, l := range losers {
		g.markRemoved(&p, model.Edge{Winner: item, Loser: l})
	}
	return p, nil
}

// markRemoved reports e as removed unless its pair is still linked in
// either direction, in which case the store's upsert already covers it.
func (g *Graph) markRemoved(p *Placement, e model.Edge) {
	if g.HasEdge(e.Winner, e.Loser) || g.HasEdge(e.Loser, e.Winner) {
		return
	}
	p.Removed = append(p.Removed, e)
}

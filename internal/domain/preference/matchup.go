package preference

import (
	"math"
	"slices"

	"github.com/okian/prefrank/internal/domain/model"
)

// SuggestMatchup returns the next pair worth comparing. Items are visited
// least-compared first (out-degree plus in-degree); the first pair with no
// edge between them and no cycle risk in either orientation wins. It
// returns false when every remaining pair is already ordered.
func (g *Graph) SuggestMatchup() (model.Matchup, bool) {
	wins, losses := g.degrees()
	items := g.Items()
	slices.SortStableFunc(items, func(a, b model.ItemID) int {
		return (wins[a] + losses[a]) - (wins[b] + losses[b])
	})

	for i, a := range items {
		for _, b := range items[i+1:] {
			if g.HasEdge(a, b) || g.HasEdge(b, a) {
				continue
			}
			if g.WillCreateCycle(a, b) {
				continue
			}
			return model.Matchup{A: a, B: b}, true
		}
	}
	return model.Matchup{}, false
}

// AvgDegreeItem returns the item whose out-degree is closest to the mean
// out-degree, ties broken by lowest id. It is a reasonable first opponent
// for an item that has never been compared. It returns false when the
// graph is empty.
func (g *Graph) AvgDegreeItem() (model.ItemID, bool) {
	items := g.Items()
	if len(items) == 0 {
		return 0, false
	}
	mean := float64(g.EdgeCount()) / float64(len(items))

	best := items[0]
	bestDiff := math.Inf(1)
	for _, id := range items {
		diff := math.Abs(float64(len(g.adj[id])) - mean)
		if diff < bestDiff {
			best, bestDiff = id, diff
		}
	}
	return best, true
}

package preference

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

// ComputeRankings returns item -> rank, 1 being the most preferred. Every
// recorded edge satisfies rank[winner] < rank[loser].
//
// The result is memoized until the next mutation. Otherwise scores are
// seeded (reusing prior scores when the item set barely moved), pushed apart
// along every out-of-order edge by a random margin until a full pass makes
// no change or the pass cap is hit, then sorted descending.
func (g *Graph) ComputeRankings(ctx context.Context) map[model.ItemID]int {
	items := g.Items()
	if !g.dirty && g.ranks != nil && g.coversExactly(items) {
		metrics.RecordRankMemoHit()
		return maps.Clone(g.ranks)
	}

	start := time.Now()
	defer func() {
		metrics.RecordRankComputation(float64(time.Since(start).Microseconds()) / 1000)
	}()

	scores := g.seedScores(items)
	edges := g.Edges()
	passes, converged := g.converge(scores, edges, len(items))
	metrics.RecordConvergencePasses(passes)
	if !converged {
		metrics.RecordConvergenceCapReached()
		g.logger.Warn(ctx, "rank convergence cap reached",
			logger.Int("items", len(items)),
			logger.Int("edges", len(edges)),
			logger.Int("passes", passes),
		)
	}

	order := sortByScore(items, scores)
	if !respectsEdges(order, edges) {
		metrics.RecordRankRepair()
		order = g.topologicalOrder(items, scores)
		g.alignScores(order, scores)
	}

	ranks := make(map[model.ItemID]int, len(order))
	for i, id := range order {
		ranks[id] = i + 1
	}

	g.scores = scores
	g.ranks = ranks
	g.dirty = false
	return maps.Clone(ranks)
}

// Scores returns a copy of the scores from the last rank computation.
func (g *Graph) Scores() map[model.ItemID]float64 {
	return maps.Clone(g.scores)
}

func (g *Graph) coversExactly(items []model.ItemID) bool {
	if len(g.ranks) != len(items) {
		return false
	}
	for _, id := range items {
		if _, ok := g.ranks[id]; !ok {
			return false
		}
	}
	return true
}

// seedScores reuses prior scores for surviving items when the prior set
// covers enough of the current one, and seeds the rest from win/loss counts.
func (g *Graph) seedScores(items []model.ItemID) map[model.ItemID]float64 {
	n := len(items)
	reuse := g.scoresReusable(items)
	wins, losses := g.degrees()

	scores := make(map[model.ItemID]float64, n)
	for _, id := range items {
		if reuse {
			if s, ok := g.scores[id]; ok {
				scores[id] = s
				continue
			}
		}
		scores[id] = g.scorer.Seed(wins[id], losses[id], n)
	}
	return scores
}

func (g *Graph) scoresReusable(items []model.ItemID) bool {
	if len(g.scores) == 0 || len(items) == 0 {
		return false
	}
	covered := 0
	for _, id := range items {
		if _, ok := g.scores[id]; ok {
			covered++
		}
	}
	delta := len(g.scores) - len(items)
	if delta < 0 {
		delta = -delta
	}
	return float64(covered) >= g.reuseCoverage*float64(len(items)) && delta <= g.reuseSizeDelta
}

// converge nudges winner and loser apart on every edge where the winner
// does not score strictly higher. It returns the passes run and whether the
// last pass made no change.
func (g *Graph) converge(scores map[model.ItemID]float64, edges []model.Edge, n int) (int, bool) {
	limit := g.convergenceFactor * n
	for pass := 1; pass <= limit; pass++ {
		changed := false
		for _, e := range edges {
			if scores[e.Winner] <= scores[e.Loser] {
				d := g.scorer.Nudge()
				scores[e.Winner] += d
				scores[e.Loser] -= d
				changed = true
			}
		}
		if !changed {
			return pass, true
		}
	}
	return limit, limit == 0
}

// sortByScore orders items by descending score, ties by ascending id.
func sortByScore(items []model.ItemID, scores map[model.ItemID]float64) []model.ItemID {
	order := slices.Clone(items)
	slices.SortStableFunc(order, func(a, b model.ItemID) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return 0
		}
	})
	return order
}

func respectsEdges(order []model.ItemID, edges []model.Edge) bool {
	pos := make(map[model.ItemID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range edges {
		if pos[e.Winner] >= pos[e.Loser] {
			return false
		}
	}
	return true
}

// topologicalOrder is Kahn's algorithm picking the highest scoring ready
// item first. Items left over by a cycle are appended by score.
func (g *Graph) topologicalOrder(items []model.ItemID, scores map[model.ItemID]float64) []model.ItemID {
	_, indeg := g.degrees()
	ready := make([]model.ItemID, 0, len(items))
	for _, id := range items {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]model.ItemID, 0, len(items))
	placed := make(map[model.ItemID]struct{}, len(items))
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			if scores[ready[i]] > scores[ready[best]] ||
				(scores[ready[i]] == scores[ready[best]] && ready[i] < ready[best]) {
				best = i
			}
		}
		id := ready[best]
		ready = slices.Delete(ready, best, best+1)
		order = append(order, id)
		placed[id] = struct{}{}
		for _, l := range g.successors(id) {
			indeg[l]--
			if indeg[l] == 0 {
				ready = append(ready, l)
			}
		}
	}

	if len(order) < len(items) {
		rest := make([]model.ItemID, 0, len(items)-len(order))
		for _, id := range items {
			if _, ok := placed[id]; !ok {
				rest = append(rest, id)
			}
		}
		order = append(order, sortByScore(rest, scores)...)
	}
	return order
}

// alignScores lowers scores where needed so they strictly decrease along
// order, keeping the memo consistent with the repaired ranking.
func (g *Graph) alignScores(order []model.ItemID, scores map[model.ItemID]float64) {
	gap, _ := g.scorer.NudgeRange()
	for i := 1; i < len(order); i++ {
		prev := scores[order[i-1]]
		if scores[order[i]] >= prev {
			scores[order[i]] = prev - gap
		}
	}
}

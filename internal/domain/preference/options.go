package preference

import (
	"github.com/okian/prefrank/internal/domain/scoring"
	"github.com/okian/prefrank/pkg/logger"
)

// Option applies a configuration option to the Graph.
type Option func(*Graph)

// WithScorer sets the seed/nudge rules used by ComputeRankings.
func WithScorer(s *scoring.Scorer) Option {
	return func(g *Graph) {
		if s != nil {
			g.scorer = s
		}
	}
}

// WithConvergenceFactor sets the per-item pass budget of the score
// adjustment loop. The cap is factor * number of items.
func WithConvergenceFactor(factor int) Option {
	return func(g *Graph) {
		if factor > 0 {
			g.convergenceFactor = factor
		}
	}
}

// WithScoreReuse sets when prior scores seed a recomputation: the prior set
// must cover at least coverage of the current items and differ in size by
// at most sizeDelta.
func WithScoreReuse(coverage float64, sizeDelta int) Option {
	return func(g *Graph) {
		if coverage > 0 && coverage <= 1 && sizeDelta >= 0 {
			g.reuseCoverage = coverage
			g.reuseSizeDelta = sizeDelta
		}
	}
}

// WithLogger sets a custom logger for the graph.
func WithLogger(l logger.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

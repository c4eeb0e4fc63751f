// Package scoring holds the numeric rules used to turn a sparse preference
// graph into dense scores: the win/loss seed heuristic and the randomized
// nudge applied when an edge is out of order.
package scoring

import (
	"math/rand/v2"
)

// Default scoring configuration constants.
const (
	defaultBaseScore = 1000
	defaultSpread    = 2000
	defaultNudgeMin  = 19
	defaultNudgeMax  = 29
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithNudgeRange sets the half-open range [minNudge, maxNudge) nudges are drawn from.
func WithNudgeRange(minNudge, maxNudge float64) Option {
	return func(s *Scorer) {
		if minNudge > 0 && maxNudge > minNudge {
			s.nudgeMin = minNudge
			s.nudgeMax = maxNudge
		}
	}
}

// WithSeedScale sets the base score and spread of the seed heuristic.
func WithSeedScale(base, spread float64) Option {
	return func(s *Scorer) {
		if spread > 0 {
			s.base = base
			s.spread = spread
		}
	}
}

// Scorer computes seed scores and nudge margins. It is safe for concurrent
// use; nudges come from the runtime-seeded global source.
type Scorer struct {
	base     float64
	spread   float64
	nudgeMin float64
	nudgeMax float64
}

// New creates a Scorer with configuration options.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		base:     defaultBaseScore,
		spread:   defaultSpread,
		nudgeMin: defaultNudgeMin,
		nudgeMax: defaultNudgeMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed returns the initial score of an item with the given number of
// outgoing (wins) and incoming (losses) edges in a graph of totalItems:
//
//	base + spread * ((wins - losses) / totalItems) * ((wins + 1) / (wins + losses + 1))
func (s *Scorer) Seed(wins, losses, totalItems int) float64 {
	if totalItems <= 0 {
		return s.base
	}
	balance := float64(wins-losses) / float64(totalItems)
	confidence := float64(wins+1) / float64(wins+losses+1)
	return s.base + s.spread*balance*confidence
}

// Nudge returns a margin drawn uniformly from [nudgeMin, nudgeMax).
func (s *Scorer) Nudge() float64 {
	return s.nudgeMin + rand.Float64()*(s.nudgeMax-s.nudgeMin) //nolint:gosec // not security sensitive
}

// NudgeRange returns the configured nudge bounds.
func (s *Scorer) NudgeRange() (float64, float64) {
	return s.nudgeMin, s.nudgeMax
}

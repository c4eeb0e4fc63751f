package simulate

import (
	"runtime"
	"time"

	"github.com/okian/prefrank/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	Users     int            // Number of simulated users
	Items     int            // Items per user, numbered from 1
	Judgments int            // Matchup judgments per user after seeding; 0 runs until none remain
	Workers   int            // Users simulated concurrently
	Polarity  model.Polarity // Polarity every judgment is recorded under
	Seed      uint64         // Seed for the hidden orders
}

// DefaultConfig returns a small run that exhausts every matchup.
func DefaultConfig() Config {
	return Config{
		Users:    16,
		Items:    20,
		Workers:  runtime.NumCPU(),
		Polarity: model.Liked,
		Seed:     uint64(time.Now().UnixNano()),
	}
}

// Stats holds run statistics.
type Stats struct {
	Users     int
	Seeded    int
	Judgments int
	Rejected  int
	Exhausted int
	Duration  time.Duration
}

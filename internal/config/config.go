// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CacheTTL bounds how long a built preference graph is served.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CachePurgeInterval sets how often expired graphs are dropped.
	CachePurgeInterval time.Duration `koanf:"cache_purge_interval"`

	// ConvergenceFactor caps rank computation at factor * items passes.
	ConvergenceFactor int `koanf:"convergence_factor"`

	// NudgeMin and NudgeMax bound the random score separation margin.
	NudgeMin float64 `koanf:"nudge_min"`
	NudgeMax float64 `koanf:"nudge_max"`

	// ReuseCoverage and ReuseSizeDelta decide when prior scores seed a
	// recomputation.
	ReuseCoverage  float64 `koanf:"reuse_coverage"`
	ReuseSizeDelta int     `koanf:"reuse_size_delta"`

	// WarmWorkers sets the number of background rank warm-up workers.
	WarmWorkers int `koanf:"warm_workers"`

	// WarmQueueSize bounds the warm-up queue.
	WarmQueueSize int `koanf:"warm_queue_size"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config holding the defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		CacheTTL:           24 * time.Hour,
		CachePurgeInterval: time.Hour,
		ConvergenceFactor:  150,
		NudgeMin:           19,
		NudgeMax:           29,
		ReuseCoverage:      0.7,
		ReuseSizeDelta:     10,
		WarmWorkers:        runtime.NumCPU(),
		WarmQueueSize:      4096,
		ShutdownTimeout:    10 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.CacheTTL <= 0:
		return fmt.Errorf("%w: cache_ttl must be positive", ErrInvalidConfig)
	case c.CachePurgeInterval <= 0:
		return fmt.Errorf("%w: cache_purge_interval must be positive", ErrInvalidConfig)
	case c.ConvergenceFactor <= 0:
		return fmt.Errorf("%w: convergence_factor must be positive", ErrInvalidConfig)
	case c.NudgeMin <= 0 || c.NudgeMin >= c.NudgeMax:
		return fmt.Errorf("%w: need 0 < nudge_min < nudge_max, got %v and %v", ErrInvalidConfig, c.NudgeMin, c.NudgeMax)
	case c.ReuseCoverage <= 0 || c.ReuseCoverage > 1:
		return fmt.Errorf("%w: reuse_coverage must be in (0, 1], got %v", ErrInvalidConfig, c.ReuseCoverage)
	case c.ReuseSizeDelta < 0:
		return fmt.Errorf("%w: reuse_size_delta must not be negative", ErrInvalidConfig)
	case c.WarmWorkers < 0 || c.WarmQueueSize < 0:
		return fmt.Errorf("%w: warm_workers and warm_queue_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

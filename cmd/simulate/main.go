package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	app "github.com/okian/prefrank/internal/app"
	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/simulate"
	"github.com/okian/prefrank/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers   = 100
	defaultItems   = 30
	defaultTimeout = 30 * time.Second
	defaultRunTime = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "", "Base URL of a running service; empty runs in-process")
		users     = flag.Int("users", defaultUsers, "Number of simulated users")
		items     = flag.Int("items", defaultItems, "Items per user")
		judgments = flag.Int("judgments", 0, "Matchup judgments per user after seeding (0 = until exhausted)")
		workers   = flag.Int("workers", runtime.NumCPU(), "Users simulated concurrently")
		polarity  = flag.String("polarity", string(model.Liked), "Polarity to judge under: liked or disliked")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for the hidden orders")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	pol, ok := model.ParsePolarity(*polarity)
	if !ok {
		os.Stderr.WriteString("invalid polarity: " + *polarity + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()

	var ranker simulate.Ranker
	if *baseURL != "" {
		client := simulate.NewHTTPClient(*baseURL, *timeout)
		if err := client.Health(ctx); err != nil {
			logger.Get().Error(ctx, "service health check failed", logger.Error(err))
			os.Exit(1)
		}
		ranker = client
	} else {
		svc := app.New()
		if err := svc.Start(ctx); err != nil {
			logger.Get().Error(ctx, "failed to start service", logger.Error(err))
			os.Exit(1)
		}
		defer func() { _ = svc.Close() }()
		ranker = svc
	}

	cfg := simulate.Config{
		Users:     *users,
		Items:     *items,
		Judgments: *judgments,
		Workers:   *workers,
		Polarity:  pol,
		Seed:      *seed,
	}
	if _, err := simulate.Run(ctx, ranker, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		cancel()
		os.Exit(1) //nolint:gocritic // deferred close is best effort here
	}
}

package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/hirelens/resume-video-service/internal/bootstrap"
	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/hosting"
	"github.com/hirelens/resume-video-service/internal/reclaim"
)

func main() {
	cfg := config.MustLoad()
	logger := bootstrap.SetupLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}
	defer closeStore()

	gateway, err := hosting.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal("Failed to initialize hosting provider:", err)
	}

	sweeper := reclaim.NewSweeper(store, gateway, reclaim.Options{
		MaxViews:         cfg.Access.MaxViews,
		TokenTTL:         cfg.Access.TokenTTL,
		BatchSize:        cfg.Sweeper.BatchSize,
		DeletesPerSecond: cfg.Sweeper.DeletesPerSecond,
		Interval:         cfg.Sweeper.Interval,
		StoreTimeout:     cfg.Timeouts.Store,
		Logger:           logger,
	})

	// Blocks until a shutdown signal arrives.
	sweeper.Run(ctx)

	slog.Info("Reclamation worker stopped")
}

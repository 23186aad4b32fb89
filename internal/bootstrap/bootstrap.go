// Package bootstrap holds the startup wiring shared by the service binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/storage"
	"github.com/hirelens/resume-video-service/internal/storage/memory"
	"github.com/hirelens/resume-video-service/internal/storage/postgres"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

// SetupLogger returns a JSON logger on stdout; local and dev environments log at debug.
func SetupLogger(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == envLocal || env == envDev {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// OpenStore connects the configured store backend. The returned func
// releases it.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Storage, func() error, error) {
	switch cfg.Storage {
	case "memory":
		return memory.New(), func() error { return nil }, nil
	case "postgres", "":
		pg, err := postgres.NewPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage)
	}
}

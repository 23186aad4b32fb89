// Package hosting abstracts the remote video provider behind Gateway and
// selects the concrete provider once at startup.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/hosting/miniohost"
	"github.com/hirelens/resume-video-service/internal/hosting/s3host"
	"github.com/hirelens/resume-video-service/internal/types/media"
	"github.com/hirelens/resume-video-service/internal/utils/upstream"
)

const (
	ProviderMinIO = "minio"
	ProviderS3    = "s3"
)

// Gateway is the contract every video provider implements.
type Gateway interface {
	Upload(ctx context.Context, in media.UploadInput) (media.Asset, error)
	Delete(ctx context.Context, mediaID string) error
	Stat(ctx context.Context, mediaID string) (media.AssetInfo, error)
	PresignedStreamURL(ctx context.Context, mediaID string, ttl time.Duration) (*url.URL, error)
}

// New builds the provider named by cfg.Hosting.Provider and wraps it with
// per-call timeouts and the retry-once policy.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Gateway, error) {
	var (
		gw  Gateway
		err error
	)

	switch cfg.Hosting.Provider {
	case ProviderMinIO, "":
		gw, err = miniohost.New(ctx, cfg.Hosting.MinIO)
	case ProviderS3:
		gw, err = s3host.New(ctx, cfg.Hosting.S3)
	default:
		return nil, fmt.Errorf("unsupported hosting provider %q", cfg.Hosting.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s hosting provider: %w", cfg.Hosting.Provider, err)
	}

	return WithRetry(gw, cfg.Timeouts.Hosting, logger), nil
}

type retryingGateway struct {
	next    Gateway
	timeout time.Duration
	logger  *slog.Logger
}

// WithRetry retries each failed provider call at most once. Missing assets
// are not retried.
func WithRetry(next Gateway, timeout time.Duration, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingGateway{
		next:    next,
		timeout: timeout,
		logger:  logger.With("component", "HostingGateway"),
	}
}

func (g *retryingGateway) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return upstream.Call(ctx, g.timeout, 1, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && !errors.Is(err, media.ErrAssetNotFound) {
			g.logger.Warn("hosting call failed", "op", op, "attempt", attempt, "error", err)
		}
		return err
	}, media.ErrAssetNotFound)
}

func (g *retryingGateway) Upload(ctx context.Context, in media.UploadInput) (media.Asset, error) {
	// The body is a stream and cannot be replayed, so uploads only get a timeout.
	callCtx, cancel := context.WithTimeout(ctx, g.timeoutOr(time.Minute))
	defer cancel()
	return g.next.Upload(callCtx, in)
}

func (g *retryingGateway) Delete(ctx context.Context, mediaID string) error {
	return g.do(ctx, "delete", func(ctx context.Context) error {
		return g.next.Delete(ctx, mediaID)
	})
}

func (g *retryingGateway) Stat(ctx context.Context, mediaID string) (media.AssetInfo, error) {
	var info media.AssetInfo
	err := g.do(ctx, "stat", func(ctx context.Context) error {
		var err error
		info, err = g.next.Stat(ctx, mediaID)
		return err
	})
	return info, err
}

func (g *retryingGateway) PresignedStreamURL(ctx context.Context, mediaID string, ttl time.Duration) (*url.URL, error) {
	var u *url.URL
	err := g.do(ctx, "presign", func(ctx context.Context) error {
		var err error
		u, err = g.next.PresignedStreamURL(ctx, mediaID, ttl)
		return err
	})
	return u, err
}

func (g *retryingGateway) timeoutOr(fallback time.Duration) time.Duration {
	if g.timeout > 0 {
		return g.timeout
	}
	return fallback
}

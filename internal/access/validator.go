package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hirelens/resume-video-service/internal/cache"
	"github.com/hirelens/resume-video-service/internal/types"
	"github.com/hirelens/resume-video-service/internal/utils/upstream"
)

// Validator resolves presented tokens. A valid token is left in place, so it
// can serve the several range requests one playback needs until it expires.
type Validator struct {
	tokens  TokenStore
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func (v *Validator) Validate(ctx context.Context, token string) (types.AccessToken, error) {
	if token == "" {
		return types.AccessToken{}, ErrTokenInvalid
	}

	var raw []byte
	err := upstream.Call(ctx, v.timeout, 1, func(ctx context.Context) error {
		var err error
		raw, err = v.tokens.Get(ctx, token)
		return err
	}, cache.ErrMiss)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return types.AccessToken{}, ErrTokenInvalid
		}
		return types.AccessToken{}, fmt.Errorf("%w: read token: %w", ErrUpstreamUnavailable, err)
	}

	var payload types.AccessToken
	if err := json.Unmarshal(raw, &payload); err != nil {
		v.logger.Warn("discarding malformed token payload", "error", err)
		v.evict(ctx, token)
		return types.AccessToken{}, ErrTokenInvalid
	}

	// The cache TTL normally evicts first; this guards against clock skew
	// between the cache and this process.
	if !v.now().Before(payload.ExpiresAt) {
		v.evict(ctx, token)
		return types.AccessToken{}, ErrTokenInvalid
	}

	return payload, nil
}

func (v *Validator) evict(ctx context.Context, token string) {
	err := upstream.Once(ctx, v.timeout, func(ctx context.Context) error {
		return v.tokens.Delete(ctx, token)
	})
	if err != nil {
		v.logger.Warn("failed to evict token", "error", err)
	}
}

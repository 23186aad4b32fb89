package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/hirelens/resume-video-service/internal/config"
	"github.com/hirelens/resume-video-service/internal/ratelimit"
	"github.com/hirelens/resume-video-service/internal/utils/response"
)

// Rate-limited actions.
const (
	ActionAccess = "access"
	ActionUpload = "upload"
)

type RateLimitConfig struct {
	limiters map[string]*ratelimit.TokenBucket
}

func NewRateLimitConfig(redisClient *redis.Client, limits config.RateLimits) *RateLimitConfig {
	return &RateLimitConfig{
		limiters: map[string]*ratelimit.TokenBucket{
			ActionAccess: ratelimit.NewTokenBucket(redisClient, limits.AccessPerMinute, limits.AccessPerMinute),
			ActionUpload: ratelimit.NewTokenBucket(redisClient, limits.UploadPerMinute, limits.UploadPerMinute),
		},
	}
}

func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Assumes auth middleware ran first
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				response.WriteError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
				return
			}

			limiter, exists := rlc.limiters[action]
			if !exists {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Allow(r.Context(), userID, action)
			if err != nil {
				// Fail open on limiter errors.
				slog.Warn("rate limit check failed, allowing request",
					slog.String("action", action), slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(decision.ResetIn.Seconds())))

			if !decision.Allowed {
				response.WriteError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

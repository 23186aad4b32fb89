package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hirelens/resume-video-service/internal/config"
)

// ErrMiss is returned by Get when the key is absent or already expired.
var ErrMiss = errors.New("cache miss")

// Cache key patterns
const (
	AccessTokenKey     = "access_token:%s" // access_token:<opaque token>
	AccessTokenPattern = "access_token:*"
)

// TokenCache is a Redis-backed key/value store with per-entry expiry.
type TokenCache struct {
	redis *redis.Client
}

// NewRedisClient connects to the configured Redis instance and verifies it responds.
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

func NewTokenCache(redisClient *redis.Client) *TokenCache {
	return &TokenCache{redis: redisClient}
}

func tokenKey(token string) string {
	return fmt.Sprintf(AccessTokenKey, token)
}

// Set stores value under key for ttl.
func (c *TokenCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache set: ttl must be positive, got %s", ttl)
	}
	if err := c.redis.Set(ctx, tokenKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Get returns the stored value or ErrMiss.
func (c *TokenCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.redis.Get(ctx, tokenKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return value, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *TokenCache) Delete(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, tokenKey(key)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

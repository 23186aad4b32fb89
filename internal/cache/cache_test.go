package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates an in-memory Redis server for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		redisClient.Close()
		mr.Close()
	})

	return mr, redisClient
}

func TestTokenCache_SetGetDelete(t *testing.T) {
	_, client := setupTestRedis(t)
	c := NewTokenCache(client)
	ctx := context.Background()

	if err := c.Set(ctx, "tok", []byte(`{"video_id":"v1"}`), time.Minute); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := c.Get(ctx, "tok")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got) != `{"video_id":"v1"}` {
		t.Fatalf("Unexpected value %q", got)
	}

	if err := c.Delete(ctx, "tok"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := c.Get(ctx, "tok"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Expected ErrMiss after delete, got %v", err)
	}
}

func TestTokenCache_EntryExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewTokenCache(client)
	ctx := context.Background()

	if err := c.Set(ctx, "tok", []byte("x"), 5*time.Minute); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ttl := mr.TTL("access_token:tok"); ttl != 5*time.Minute {
		t.Fatalf("Expected TTL 5m, got %s", ttl)
	}

	mr.FastForward(5*time.Minute + time.Second)

	if _, err := c.Get(ctx, "tok"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Expected ErrMiss after expiry, got %v", err)
	}
}

func TestTokenCache_RejectsNonPositiveTTL(t *testing.T) {
	_, client := setupTestRedis(t)
	c := NewTokenCache(client)

	token := "Zm9vYmFyYmF6cXV4cXV1eHF1dXhxdXV4cXV1eHF1dXg"
	err := c.Set(context.Background(), token, []byte("x"), 0)
	if err == nil {
		t.Fatal("Expected error for zero TTL")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("Error must not carry the token, got %q", err.Error())
	}
}

func TestGetCacheStats_CountsTokens(t *testing.T) {
	_, client := setupTestRedis(t)
	c := NewTokenCache(client)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	client.Set(ctx, "rate_limit:u:access", "x", time.Minute)

	rec := httptest.NewRecorder()
	GetCacheStats(client)(rec, httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Data CacheStats `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ActiveTokens != 2 || body.Data.KeyCount != 3 {
		t.Fatalf("Unexpected stats %+v", body.Data)
	}
}

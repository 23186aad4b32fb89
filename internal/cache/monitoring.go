package cache

import (
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/hirelens/resume-video-service/internal/utils/response"
)

// CacheStats represents token cache statistics
type CacheStats struct {
	RedisConnected bool  `json:"redis_connected"`
	ActiveTokens   int64 `json:"active_tokens"`
	KeyCount       int   `json:"total_keys"`
}

// GetCacheStats reports how many access tokens are currently live. Token
// values themselves are never returned.
func GetCacheStats(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		stats := CacheStats{RedisConnected: true}

		if err := redisClient.Ping(ctx).Err(); err != nil {
			stats.RedisConnected = false
			response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
			return
		}

		// SCAN rather than KEYS so a large token population does not block Redis.
		var cursor uint64
		for {
			keys, next, err := redisClient.Scan(ctx, cursor, AccessTokenPattern, 500).Result()
			if err != nil {
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
				return
			}
			stats.ActiveTokens += int64(len(keys))
			cursor = next
			if cursor == 0 {
				break
			}
		}

		if dbSize := redisClient.DBSize(ctx); dbSize.Err() == nil {
			stats.KeyCount = int(dbSize.Val())
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
	}
}

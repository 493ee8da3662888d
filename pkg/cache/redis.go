package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on top of a Redis client.
// All Redis failures are logged at warn level and treated as misses.
type RedisCache struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client redis.UniversalClient, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		logger: logger,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "cache get failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache set failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache delete failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// DeletePattern removes matching keys using incremental SCAN to avoid
// blocking Redis the way KEYS would.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.logger.WarnContext(ctx, "cache scan failed",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()))
			return
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.WarnContext(ctx, "cache delete failed",
					slog.String("pattern", pattern),
					slog.String("error", err.Error()))
				return
			}
		}

		cursor = next
		if cursor == 0 {
			return
		}
	}
}

package middleware

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisLoginLimiter shares login attempt counters across instances using Redis
type RedisLoginLimiter struct {
	redis  *redis.Client
	config LoginRateLimitConfig
	prefix string
}

var _ LoginLimiter = (*RedisLoginLimiter)(nil)

// NewRedisLoginLimiter creates a new Redis-backed login limiter
func NewRedisLoginLimiter(redisClient *redis.Client, config LoginRateLimitConfig, prefix string) (*RedisLoginLimiter, error) {
	if config.MaxAttempts <= 0 || config.Window <= 0 {
		return nil, fmt.Errorf("login rate limit requires positive max attempts and window")
	}
	if prefix == "" {
		prefix = "cmsadmin:login"
	}

	return &RedisLoginLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}, nil
}

func (l *RedisLoginLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

// Allow increments the counter of key. The window starts with the first attempt.
// Redis errors fail open and are returned alongside true.
func (l *RedisLoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.key(key)

	count, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, redisKey, l.config.Window).Err(); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	}

	return count <= int64(l.config.MaxAttempts), nil
}

func (l *RedisLoginLimiter) Backend() string { return "redis" }

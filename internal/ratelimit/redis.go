package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis used by the limiter.
type RedisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Redis shares windows across processes with INCR and EXPIRE on the first hit.
type Redis struct {
	client RedisClient
	limit  int
	window time.Duration
	prefix string
}

func NewRedis(client RedisClient, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window, prefix: "ratelimit:"}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	k := r.prefix + key
	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: expire: %w", err)
		}
	}
	if int(n) <= r.limit {
		return Decision{Allowed: true, Remaining: r.limit - int(n)}, nil
	}
	ttl, err := r.client.TTL(ctx, k).Result()
	if err != nil {
		return Decision{Allowed: false, RetryAfter: r.window}, nil
	}
	if ttl < 0 {
		// The EXPIRE after the first INCR was lost, so the key would never
		// reset. Give it a fresh window.
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: repair expire: %w", err)
		}
		ttl = r.window
	}
	if ttl == 0 {
		ttl = r.window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

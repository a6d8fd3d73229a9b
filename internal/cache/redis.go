package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"retouch/internal/domain"
)

// RedisClient is the subset of the go-redis client used by the cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	DBSize(ctx context.Context) *redis.IntCmd
}

// Redis stores entries as JSON strings with a server-side expiry.
type Redis struct {
	client RedisClient
}

func NewRedis(client RedisClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	if err := decode(raw, dest); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: redis del %s: %w", key, err)
	}
	return nil
}

// Clear is not supported on a shared Redis database.
func (r *Redis) Clear(context.Context) error {
	return fmt.Errorf("cache: redis clear: %w", domain.ErrNotSupported)
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	n, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{Type: "redis"}, fmt.Errorf("cache: redis dbsize: %w", err)
	}
	return Stats{Type: "redis", Size: n}, nil
}

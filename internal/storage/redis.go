package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Backend = (*RedisBackend)(nil)

// RedisBackend stores values in Redis under a common prefix, letting several
// processes share one session.
type RedisBackend struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend creates a Redis backed store. A zero ttl keeps keys forever.
func NewRedisBackend(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisBackend) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	if err := r.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisRetention bounds how long keys stay in Redis. Expiry of the
// policy itself is still decided by the entry's ttl_seconds.
const DefaultRedisRetention = 24 * time.Hour

const redisPrefix = "hookwarden:cache:"

// RedisStore keeps entries in Redis.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRedisRetention
	}
	return &RedisStore{client: client, retention: retention}
}

func (r *RedisStore) Write(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, redisPrefix+key, data, r.retention).Err()
}

func (r *RedisStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

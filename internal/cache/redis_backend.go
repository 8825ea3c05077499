package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisBackend is the shared tier of a Mirror: every replica writes through
// to the same Redis keyspace so a cache warmed by one replica benefits the
// others, at whatever consistency Redis itself provides (no synchronous
// cross-replica guarantee is made or needed here).
type redisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing *redis.Client. keyPrefix namespaces keys
// so a Mirror can share a Redis instance with unrelated data.
func NewRedisBackend(client *redis.Client, keyPrefix string) Backend {
	return &redisBackend{client: client, prefix: keyPrefix}
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, b.prefix+key, value, ttl).Err()
}

func (b *redisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.prefix+key).Err()
}

func (b *redisBackend) Close() error {
	return nil // client lifecycle belongs to whoever constructed it
}

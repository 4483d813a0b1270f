package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/redis/go-redis/v9"
)

// Backend stores cache values as plain Redis strings with a PX expiry.
// Every key is namespaced under prefix so several deployments can share a server.
type Backend struct {
	rdb    *redis.Client
	prefix string
}

// NewBackend creates a Backend on c. An empty prefix stores keys as given.
func NewBackend(c *Client, prefix string) *Backend {
	return &Backend{rdb: c.Underlying(), prefix: prefix}
}

var _ port.CacheBackend = (*Backend)(nil)

func (b *Backend) key(k string) string {
	if b.prefix == "" {
		return k
	}
	return b.prefix + ":" + k
}

// Get returns entity.ErrCacheMiss when the key does not exist.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entity.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return data, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, b.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.rdb.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// Package memory implements port.CacheBackend on patrickmn/go-cache.
package memory

import (
	"context"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/patrickmn/go-cache"
)

// Backend keeps byte values in process memory. Values are copied on the way in and out
// so callers never share a buffer with the cache.
type Backend struct {
	store *cache.Cache
}

// New creates a Backend. defaultTTL applies when Set is called with a non-positive TTL.
func New(defaultTTL, cleanupInterval time.Duration) *Backend {
	return &Backend{store: cache.New(defaultTTL, cleanupInterval)}
}

var _ port.CacheBackend = (*Backend)(nil)

// Get returns entity.ErrCacheMiss for absent or expired keys.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := b.store.Get(key)
	if !ok {
		return nil, entity.ErrCacheMiss
	}
	data, ok := v.([]byte)
	if !ok {
		b.store.Delete(key)
		return nil, entity.ErrCacheMiss
	}
	return append([]byte(nil), data...), nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	b.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.store.Delete(key)
	return nil
}

// ItemCount reports how many keys are stored, expired ones included until cleanup runs.
func (b *Backend) ItemCount() int {
	return b.store.ItemCount()
}

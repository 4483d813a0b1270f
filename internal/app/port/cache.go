package port

import (
	"context"
	"time"
)

// CacheBackend is a byte-oriented key/value store with per-key TTL.
// Get returns entity.ErrCacheMiss when the key is absent or expired.
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	namespaceStructure = "structure"
	namespacePrice     = "price"
)

// TieredCacheConfig holds the TTL of each namespace.
type TieredCacheConfig struct {
	StructureTTL time.Duration
	PriceTTL     time.Duration
	// RefreshTimeout bounds a refresh that outlives the caller who started it.
	RefreshTimeout time.Duration
}

// TieredCache keeps the structure and price namespaces on one byte-oriented backend.
// Entries are whole-value JSON documents; a refresh replaces the entry for its key.
type TieredCache struct {
	backend port.CacheBackend
	cfg     TieredCacheConfig
	logger  port.Logger
	metrics port.MetricsRecorder
	now     func() time.Time
	flights singleflight.Group
}

// TieredCacheOption configures a TieredCache.
type TieredCacheOption func(*TieredCache)

// WithCacheClock replaces time.Now for freshness checks and write stamps.
func WithCacheClock(now func() time.Time) TieredCacheOption {
	return func(c *TieredCache) { c.now = now }
}

// NewTieredCache creates a new TieredCache.
func NewTieredCache(
	backend port.CacheBackend,
	cfg TieredCacheConfig,
	logger port.Logger,
	metrics port.MetricsRecorder,
	opts ...TieredCacheOption,
) *TieredCache {
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = time.Minute
	}
	c := &TieredCache{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StructureKey is structure:{wallet}:{sortedNetworkSetHash}.
func StructureKey(wallet string, networks []string) string {
	set := make([]string, 0, len(networks))
	for _, n := range networks {
		set = append(set, strings.ToLower(strings.TrimSpace(n)))
	}
	return fmt.Sprintf("%s:%s:%s", namespaceStructure, strings.ToLower(wallet), setHash(set))
}

// PriceKey is price:{sortedTokenIdSetHash}. It does not depend on the wallet.
func PriceKey(tokens []entity.TokenReference) string {
	set := make([]string, 0, len(tokens))
	for _, t := range tokens {
		set = append(set, t.ID())
	}
	return fmt.Sprintf("%s:%s", namespacePrice, setHash(set))
}

func setHash(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	uniq := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			uniq = append(uniq, s)
		}
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(uniq, ",")))
}

// GetOrRefreshStructure returns the cached structure of wallet on networks, or runs refresh once
// for all concurrent callers of the same key and caches its result.
func (c *TieredCache) GetOrRefreshStructure(
	ctx context.Context,
	wallet string,
	networks []string,
	refresh func(ctx context.Context) (*entity.PortfolioStructure, error),
) (*entity.PortfolioStructure, bool, error) {
	return getOrRefresh(ctx, c, namespaceStructure, StructureKey(wallet, networks), c.cfg.StructureTTL,
		func(ctx context.Context) (*entity.PortfolioStructure, bool, error) {
			s, err := refresh(ctx)
			return s, err == nil, err
		})
}

// GetOrRefreshPrices returns the cached quotes of the token set, or refreshes them.
// Incomplete refreshes are returned to every waiting caller but not written to the backend.
func (c *TieredCache) GetOrRefreshPrices(
	ctx context.Context,
	tokens []entity.TokenReference,
	refresh func(ctx context.Context) (entity.PriceRefresh, error),
) (entity.PriceRefresh, bool, error) {
	return getOrRefresh(ctx, c, namespacePrice, PriceKey(tokens), c.cfg.PriceTTL,
		func(ctx context.Context) (entity.PriceRefresh, bool, error) {
			r, err := refresh(ctx)
			return r, err == nil && r.Complete, err
		})
}

// InvalidateStructure drops the structure entry of wallet on networks. A backend failure
// is logged and otherwise ignored, like any other cache degradation.
func (c *TieredCache) InvalidateStructure(ctx context.Context, wallet string, networks []string) {
	key := StructureKey(wallet, networks)
	if err := c.backend.Delete(ctx, key); err != nil {
		c.logger.Warn("Cache backend delete failed, structure entry may be served until it expires",
			"namespace", namespaceStructure, "key", key, "error", err)
		return
	}
	c.logger.Debug("Structure entry invalidated", "key", key)
}

func getOrRefresh[T any](
	ctx context.Context,
	c *TieredCache,
	ns, key string,
	ttl time.Duration,
	refresh func(ctx context.Context) (T, bool, error),
) (T, bool, error) {
	if v, ok := lookup[T](ctx, c, ns, key); ok {
		return v, true, nil
	}

	ch := c.flights.DoChan(key, func() (any, error) {
		// Waiters share this refresh, so it must not die with the caller that happened to start it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RefreshTimeout)
		defer cancel()

		started := time.Now()
		v, cacheable, err := refresh(rctx)
		c.metrics.CacheRefresh(ns, time.Since(started), err)
		if err != nil {
			return nil, err
		}
		if cacheable {
			store(rctx, c, ns, key, ttl, v)
		}
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		if res.Shared {
			c.logger.Debug("Joined in-flight refresh", "namespace", ns, "key", key)
		}
		return res.Val.(T), false, nil
	}
}

func lookup[T any](ctx context.Context, c *TieredCache, ns, key string) (T, bool) {
	var zero T
	data, err := c.backend.Get(ctx, key)
	if errors.Is(err, entity.ErrCacheMiss) {
		c.metrics.CacheLookup(ns, "miss")
		return zero, false
	}
	if err != nil {
		c.metrics.CacheLookup(ns, "error")
		c.logger.Warn("Cache backend read failed, bypassing cache", "namespace", ns, "key", key, "error", err)
		return zero, false
	}

	var entry entity.CacheEntry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		c.metrics.CacheLookup(ns, "miss")
		c.logger.Warn("Discarding undecodable cache entry", "namespace", ns, "key", key, "error", err)
		return zero, false
	}
	if !entry.FreshAt(c.now()) {
		c.metrics.CacheLookup(ns, "miss")
		return zero, false
	}
	c.metrics.CacheLookup(ns, "hit")
	return entry.Value, true
}

func store[T any](ctx context.Context, c *TieredCache, ns, key string, ttl time.Duration, v T) {
	entry := entity.CacheEntry[T]{Value: v, WrittenAt: c.now().UTC(), TTL: ttl}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("Failed to encode cache entry", "namespace", ns, "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("Cache backend write failed, serving uncached value", "namespace", ns, "key", key, "error", err)
	}
}

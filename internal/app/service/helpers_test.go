package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"portfolio_aggregator/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopMetrics struct{}

func (nopMetrics) CacheLookup(string, string)                {}
func (nopMetrics) CacheRefresh(string, time.Duration, error) {}
func (nopMetrics) ProviderRequest(string, string)            {}
func (nopMetrics) BudgetRejected(string)                     {}
func (nopMetrics) EnrichmentInFlight(int)                    {}
func (nopMetrics) EnrichmentItems(string, int)               {}

// mapBackend is an in-memory CacheBackend that ignores TTLs, so freshness is decided by the
// cache's own clock, and can be switched into a failing mode.
type mapBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	failSet bool
	failDel bool
	sets    int
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string][]byte)}
}

func (b *mapBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failGet {
		return nil, errors.New("backend down")
	}
	v, ok := b.data[key]
	if !ok {
		return nil, entity.ErrCacheMiss
	}
	return v, nil
}

func (b *mapBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSet {
		return errors.New("backend down")
	}
	b.sets++
	b.data[key] = append([]byte(nil), value...)
	return nil
}

func (b *mapBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDel {
		return errors.New("backend down")
	}
	delete(b.data, key)
	return nil
}

func (b *mapBackend) keys(prefix string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeNetworks struct {
	defs []entity.NetworkDefinition
}

func (f fakeNetworks) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	return f.defs
}

func (f fakeNetworks) GetNetworkDefinitionByName(name string) (entity.NetworkDefinition, bool) {
	for _, d := range f.defs {
		if strings.EqualFold(d.Identifier, name) || strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return entity.NetworkDefinition{}, false
}

var testNetworks = fakeNetworks{defs: []entity.NetworkDefinition{
	{ChainID: 1, Name: "Ethereum", Identifier: "ethereum", NativeSymbol: "ETH", DEXScreenerChainID: "ethereum"},
	{ChainID: 42161, Name: "Arbitrum", Identifier: "arbitrum", NativeSymbol: "ETH", DEXScreenerChainID: "arbitrum"},
}}

type fakePositions struct {
	mu        sync.Mutex
	calls     int
	positions []entity.RawPosition
	err       error
	delay     time.Duration
}

func (f *fakePositions) FetchPositions(ctx context.Context, _ string, _ []string, _ entity.PositionFilter) ([]entity.RawPosition, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.positions, f.err
}

func (f *fakePositions) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// metadataFunc adapts a function to port.MetadataProvider.
type metadataFunc func(ctx context.Context, token entity.TokenReference) (*entity.TokenMetadata, error)

func (f metadataFunc) FetchMetadata(ctx context.Context, token entity.TokenReference) (*entity.TokenMetadata, error) {
	return f(ctx, token)
}

func ptr(f float64) *float64 { return &f }

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/retry"

	"golang.org/x/time/rate"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type countingMetrics struct {
	outcomes map[string]int
}

func (m *countingMetrics) CacheLookup(string, string)                {}
func (m *countingMetrics) CacheRefresh(string, time.Duration, error) {}
func (m *countingMetrics) BudgetRejected(string)                     {}
func (m *countingMetrics) EnrichmentInFlight(int)                    {}
func (m *countingMetrics) EnrichmentItems(string, int)               {}
func (m *countingMetrics) ProviderRequest(_ string, outcome string) {
	m.outcomes[outcome]++
}

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) FetchMetadata(_ context.Context, tok entity.TokenReference) (*entity.TokenMetadata, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &entity.TokenMetadata{Token: tok, PriceUSD: 1.5}, nil
}

func newTestProvider(next *scriptedProvider, limiter *rate.Limiter) (*countingMetrics, func(context.Context) (*entity.TokenMetadata, error)) {
	m := &countingMetrics{outcomes: map[string]int{}}
	r := retry.New(retry.Config{MaxAttempts: 3, Backoff: retry.BackoffFixed, BaseDelay: time.Millisecond}, "dexscreener", nopLogger{})
	p := NewMetadataProvider("dexscreener", next, limiter, r, m, nopLogger{})
	tok := entity.NewTokenReference("ethereum", "native")
	return m, func(ctx context.Context) (*entity.TokenMetadata, error) { return p.FetchMetadata(ctx, tok) }
}

func TestMetadataProviderRetriesTransientErrors(t *testing.T) {
	next := &scriptedProvider{errs: []error{&entity.ProviderError{Kind: entity.KindTransient, StatusCode: 502}}}
	m, fetch := newTestProvider(next, rate.NewLimiter(rate.Inf, 1))

	md, err := fetch(context.Background())
	if err != nil || md.PriceUSD != 1.5 {
		t.Fatalf("expected success after retry, got %v %v", md, err)
	}
	if next.calls != 2 || m.outcomes["ok"] != 1 {
		t.Fatalf("expected 2 calls and one ok outcome, got %d %v", next.calls, m.outcomes)
	}
}

func TestMetadataProviderDoesNotRetryNotFound(t *testing.T) {
	next := &scriptedProvider{errs: []error{&entity.ProviderError{Kind: entity.KindNotFound, StatusCode: 200}}}
	m, fetch := newTestProvider(next, rate.NewLimiter(rate.Inf, 1))

	if _, err := fetch(context.Background()); !errors.Is(err, entity.ErrMetadataNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if next.calls != 1 || m.outcomes["not_found"] != 1 {
		t.Fatalf("expected a single call recorded as not_found, got %d %v", next.calls, m.outcomes)
	}
}

func TestMetadataProviderPacesCalls(t *testing.T) {
	next := &scriptedProvider{}
	_, fetch := newTestProvider(next, rate.NewLimiter(rate.Every(50*time.Millisecond), 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := fetch(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("three paced calls at 20/s should take at least ~100ms, took %s", elapsed)
	}
}

func TestMetadataProviderStopsOnCancelledContext(t *testing.T) {
	next := &scriptedProvider{}
	m, fetch := newTestProvider(next, rate.NewLimiter(rate.Every(time.Hour), 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fetch(ctx); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if next.calls != 0 || m.outcomes["cancelled"] != 1 {
		t.Fatalf("no upstream call should be made, got %d %v", next.calls, m.outcomes)
	}
}

func TestMetadataProviderPacingPastDeadline(t *testing.T) {
	next := &scriptedProvider{}
	limiter := rate.NewLimiter(rate.Every(time.Minute), 1)
	limiter.Allow()
	m, fetch := newTestProvider(next, limiter)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := fetch(ctx)
	if !errors.Is(err, entity.ErrPacingDeadline) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a pacing deadline error, got %v", err)
	}
	if time.Since(start) > 40*time.Millisecond {
		t.Fatal("a token past the deadline should be refused without waiting or retrying")
	}
	if next.calls != 0 || m.outcomes["cancelled"] != 1 {
		t.Fatalf("expected no upstream call and a cancelled outcome, got %d %v", next.calls, m.outcomes)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"portfolio_aggregator/internal/app/provider"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/retry"

	"golang.org/x/time/rate"
)

func testTokens(n int) []entity.TokenReference {
	out := make([]entity.TokenReference, n)
	for i := range out {
		out[i] = entity.NewTokenReference("ethereum", fmt.Sprintf("0x%040x", i+1))
	}
	return out
}

func TestEnrichmentBulkheadBound(t *testing.T) {
	var inFlight, maxSeen int32
	provider := metadataFunc(func(ctx context.Context, tok entity.TokenReference) (*entity.TokenMetadata, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxSeen)
			if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return &entity.TokenMetadata{Token: tok, PriceUSD: 1}, nil
	})

	p := NewEnrichmentPipeline(provider, EnrichmentConfig{Width: 10, Timeout: 10 * time.Second}, nopLogger{}, nopMetrics{})
	report := p.EnrichMissing(context.Background(), testTokens(50))

	if report.Succeeded != 50 {
		t.Fatalf("expected all 50 enriched, got %+v", report.EnrichmentSummary)
	}
	if maxSeen > 10 {
		t.Fatalf("bulkhead exceeded: %d concurrent calls", maxSeen)
	}
	if maxSeen <= 1 {
		t.Fatalf("expected parallel calls, max concurrency was %d", maxSeen)
	}
}

func TestEnrichmentFailuresDoNotStarveSlots(t *testing.T) {
	tokens := testTokens(100)
	failing := make(map[entity.TokenReference]bool)
	for i, tok := range tokens {
		failing[tok] = i%2 == 1
	}
	var attempted int32
	provider := metadataFunc(func(ctx context.Context, tok entity.TokenReference) (*entity.TokenMetadata, error) {
		atomic.AddInt32(&attempted, 1)
		if failing[tok] {
			return nil, &entity.ProviderError{Provider: "dexscreener", Kind: entity.KindTransient, StatusCode: 502}
		}
		return &entity.TokenMetadata{Token: tok, PriceUSD: 2}, nil
	})

	p := NewEnrichmentPipeline(provider, EnrichmentConfig{Width: 10, Timeout: 10 * time.Second}, nopLogger{}, nopMetrics{})
	done := make(chan *entity.EnrichmentReport, 1)
	go func() { done <- p.EnrichMissing(context.Background(), tokens) }()

	var report *entity.EnrichmentReport
	select {
	case report = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch deadlocked")
	}
	if attempted != 100 {
		t.Fatalf("expected every token attempted, got %d", attempted)
	}
	if report.Succeeded != 50 || report.Failed != 50 || report.Cancelled != 0 {
		t.Fatalf("unexpected summary %+v", report.EnrichmentSummary)
	}
	if res := report.Results[tokens[1]]; res.Status != entity.EnrichmentFailed || res.Err == nil {
		t.Fatalf("failed token should carry its error, got %+v", res)
	}
}

func TestEnrichmentPanicsAreIsolated(t *testing.T) {
	tokens := testTokens(20)
	provider := metadataFunc(func(ctx context.Context, tok entity.TokenReference) (*entity.TokenMetadata, error) {
		if tok == tokens[0] {
			panic("boom")
		}
		return &entity.TokenMetadata{Token: tok, PriceUSD: 1}, nil
	})
	p := NewEnrichmentPipeline(provider, EnrichmentConfig{Width: 2, Timeout: 5 * time.Second}, nopLogger{}, nopMetrics{})
	report := p.EnrichMissing(context.Background(), tokens)
	if report.Failed != 1 || report.Succeeded != 19 {
		t.Fatalf("expected one failed item, got %+v", report.EnrichmentSummary)
	}
}

func TestEnrichmentDeadlineReturnsPartialResult(t *testing.T) {
	var mu sync.Mutex
	started := 0
	provider := metadataFunc(func(ctx context.Context, tok entity.TokenReference) (*entity.TokenMetadata, error) {
		mu.Lock()
		started++
		mu.Unlock()
		select {
		case <-time.After(40 * time.Millisecond):
			return &entity.TokenMetadata{Token: tok, PriceUSD: 1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	const timeout = 100 * time.Millisecond
	p := NewEnrichmentPipeline(provider, EnrichmentConfig{Width: 10, Timeout: timeout, DrainGrace: 50 * time.Millisecond}, nopLogger{}, nopMetrics{})

	start := time.Now()
	report := p.EnrichMissing(context.Background(), testTokens(100))
	elapsed := time.Since(start)

	if elapsed > timeout+500*time.Millisecond {
		t.Fatalf("batch should return shortly after the deadline, took %s", elapsed)
	}
	if report.Completed() >= report.Dispatched {
		t.Fatalf("expected some dispatched items unfinished, got %+v", report.EnrichmentSummary)
	}
	if report.Cancelled == 0 {
		t.Fatal("expected cancelled items")
	}
	if report.Dispatched >= 100 {
		t.Fatalf("dispatch should stop at the deadline, dispatched %d", report.Dispatched)
	}
	if len(report.Results) != 100 {
		t.Fatalf("every requested token needs a result entry, got %d", len(report.Results))
	}
	if report.Succeeded+report.Failed+report.Cancelled != report.Requested {
		t.Fatalf("counters do not add up: %+v", report.EnrichmentSummary)
	}
}

func TestEnrichmentHonoursCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	provider := metadataFunc(func(ctx context.Context, tok entity.TokenReference) (*entity.TokenMetadata, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			cancel()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p := NewEnrichmentPipeline(provider, EnrichmentConfig{Width: 1, Timeout: 10 * time.Second}, nopLogger{}, nopMetrics{})
	report := p.EnrichMissing(ctx, testTokens(10))

	if report.Cancelled != 10 || report.Dispatched != 1 {
		t.Fatalf("expected one dispatched and all cancelled, got %+v", report.EnrichmentSummary)
	}
	if res := report.Results[testTokens(10)[5]]; !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("undispatched token should report cancellation, got %v", res.Err)
	}
}

func TestEnrichmentDeduplicatesTokens(t *testing.T) {
	var calls int32
	provider := metadataFunc(func(ctx context.Context, tok entity.TokenReference) (*entity.TokenMetadata, error) {
		atomic.AddInt32(&calls, 1)
		return &entity.TokenMetadata{Token: tok, PriceUSD: 1}, nil
	})
	p := NewEnrichmentPipeline(provider, EnrichmentConfig{}, nopLogger{}, nopMetrics{})
	tok := entity.NewTokenReference("ethereum", "native")
	report := p.EnrichMissing(context.Background(), []entity.TokenReference{tok, tok, tok})
	if calls != 1 || report.Requested != 1 {
		t.Fatalf("expected one call for duplicate tokens, got %d calls, %+v", calls, report.EnrichmentSummary)
	}
}

func TestEnrichmentPacingPastDeadlineCountsAsCancelled(t *testing.T) {
	upstream := metadataFunc(func(ctx context.Context, tok entity.TokenReference) (*entity.TokenMetadata, error) {
		return &entity.TokenMetadata{Token: tok, PriceUSD: 1}, nil
	})
	retrier := retry.New(retry.Config{MaxAttempts: 3, Backoff: retry.BackoffFixed, BaseDelay: time.Millisecond}, "dexscreener", nopLogger{})
	paced := provider.NewMetadataProvider("dexscreener", upstream, rate.NewLimiter(1, 1), retrier, nopMetrics{}, nopLogger{})

	p := NewEnrichmentPipeline(paced, EnrichmentConfig{Width: 5, Timeout: 300 * time.Millisecond}, nopLogger{}, nopMetrics{})
	report := p.EnrichMissing(context.Background(), testTokens(5))

	if report.Succeeded != 1 || report.Cancelled != 4 || report.Failed != 0 {
		t.Fatalf("tokens that cannot be paced before the deadline must count as cancelled, got %+v", report.EnrichmentSummary)
	}
	for _, res := range report.Results {
		if res.Status == entity.EnrichmentCancelled && !errors.Is(res.Err, context.DeadlineExceeded) {
			t.Fatalf("cancelled item should carry a deadline error, got %v", res.Err)
		}
	}
}

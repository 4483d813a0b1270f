package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/valyala/fasthttp"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestPolicy(cfg Config) (*Policy, *[]time.Duration) {
	p := New(cfg, "positions", nopLogger{})
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"500", &entity.ProviderError{StatusCode: 500}, ClassTransient},
		{"503 transient kind", &entity.ProviderError{Kind: entity.KindTransient, StatusCode: 503}, ClassTransient},
		{"429", &entity.ProviderError{Kind: entity.KindRateLimited, StatusCode: 429}, ClassRateLimit},
		{"401", &entity.ProviderError{Kind: entity.KindAuth, StatusCode: 401}, ClassTerminal},
		{"404", &entity.ProviderError{Kind: entity.KindBadRequest, StatusCode: 404}, ClassTerminal},
		{"fasthttp timeout", fasthttp.ErrTimeout, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"canceled", context.Canceled, ClassTerminal},
		{"budget", &entity.BudgetExceededError{Budget: "minute"}, ClassTerminal},
		{"pacing past deadline", entity.ErrPacingDeadline, ClassTerminal},
		{"plain", errors.New("boom"), ClassTerminal},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("%s: Classify = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	p, slept := newTestPolicy(Config{MaxAttempts: 3, Backoff: BackoffFixed, BaseDelay: 100 * time.Millisecond})
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &entity.ProviderError{Kind: entity.KindTransient, StatusCode: 502}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(*slept) != 2 || (*slept)[0] != 100*time.Millisecond || (*slept)[1] != 100*time.Millisecond {
		t.Fatalf("fixed backoff should sleep 100ms twice, got %v", *slept)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	p, _ := newTestPolicy(Config{MaxAttempts: 5, BaseDelay: time.Millisecond})
	calls := 0
	want := &entity.ProviderError{Kind: entity.KindAuth, StatusCode: 401}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return want
	})
	if calls != 1 {
		t.Fatalf("auth failures must not be retried, got %d calls", calls)
	}
	if !errors.Is(err, entity.ErrAuthentication) {
		t.Fatalf("expected auth error to surface unchanged, got %v", err)
	}
}

func TestDoExhaustedTransientBecomesUnavailable(t *testing.T) {
	p, _ := newTestPolicy(Config{MaxAttempts: 4, Backoff: BackoffExponential, BaseDelay: time.Millisecond})
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return &entity.ProviderError{Kind: entity.KindTransient, StatusCode: 503}
	})
	if calls != 4 {
		t.Fatalf("expected exactly MaxAttempts calls, got %d", calls)
	}
	var pe *entity.ProviderError
	if !errors.As(err, &pe) || pe.Kind != entity.KindUnavailable || pe.Attempts != 4 {
		t.Fatalf("expected unavailable after 4 attempts, got %v", err)
	}
	if !errors.Is(err, entity.ErrProviderUnavailable) {
		t.Fatal("exhausted transient error should match ErrProviderUnavailable")
	}
}

func TestDoExhaustedRateLimitCarriesHint(t *testing.T) {
	p, slept := newTestPolicy(Config{MaxAttempts: 2, Backoff: BackoffFixed, BaseDelay: time.Second, MaxDelay: 10 * time.Second})
	err := p.Do(context.Background(), func(context.Context) error {
		return &entity.ProviderError{Kind: entity.KindRateLimited, StatusCode: 429, RetryAfter: 3 * time.Second}
	})
	if !errors.Is(err, entity.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	hint, ok := entity.RetryAfterHint(err)
	if !ok || hint != 3*time.Second {
		t.Fatalf("expected retry-after hint of 3s, got %s (%v)", hint, ok)
	}
	if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
		t.Fatalf("retry-after hint should stretch the delay, got %v", *slept)
	}
}

func TestExponentialDelayIsCapped(t *testing.T) {
	p := New(Config{MaxAttempts: 10, Backoff: BackoffExponential, BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second}, "x", nopLogger{})
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	p, _ := newTestPolicy(Config{MaxAttempts: 5, BaseDelay: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return &entity.ProviderError{Kind: entity.KindTransient}
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("expected context.Canceled after 1 call, got %v after %d", err, calls)
	}
}

// Package retry wraps provider calls with bounded, classified retries.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/valyala/fasthttp"
)

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	BackoffFixed Backoff = iota
	BackoffExponential
)

// ParseBackoff accepts "fixed" and "exponential".
func ParseBackoff(s string) (Backoff, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return BackoffFixed, nil
	case "", "exponential", "exp":
		return BackoffExponential, nil
	default:
		return BackoffExponential, fmt.Errorf("unknown backoff %q", s)
	}
}

// Class is the retry classification of an error.
type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
	ClassRateLimit Class = "rate_limited"
)

// Config holds the policy knobs.
type Config struct {
	MaxAttempts int
	Backoff     Backoff
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Policy retries 5xx, 429 and transient network failures, never past MaxAttempts.
type Policy struct {
	cfg      Config
	provider string
	logger   port.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Policy. provider names the upstream in exhausted-retry errors.
func New(cfg Config, provider string, logger port.Logger) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Policy{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		sleep:    sleepContext,
	}
}

var _ port.Retrier = (*Policy)(nil)

// Do runs op until it succeeds, fails terminally, or attempts run out.
// Exhausted rate limits surface as KindRateLimited with the last retry-after hint,
// exhausted transient failures as KindUnavailable.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	lastClass := ClassTerminal

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		lastClass = Classify(err)
		if lastClass == ClassTerminal {
			return err
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if hint, ok := entity.RetryAfterHint(err); ok && hint > delay {
			delay = hint
			if p.cfg.MaxDelay > 0 && delay > p.cfg.MaxDelay {
				delay = p.cfg.MaxDelay
			}
		}
		p.logger.Warn("Provider call failed, retrying",
			"provider", p.provider,
			"classification", lastClass,
			"attempt", attempt,
			"max_attempts", p.cfg.MaxAttempts,
			"delay", delay,
			"error", err)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return p.exhausted(lastErr, lastClass)
}

func (p *Policy) exhausted(err error, class Class) error {
	out := &entity.ProviderError{
		Provider: p.provider,
		Kind:     entity.KindUnavailable,
		Attempts: p.cfg.MaxAttempts,
		Err:      err,
	}
	var pe *entity.ProviderError
	if errors.As(err, &pe) {
		out.StatusCode = pe.StatusCode
	}
	if class == ClassRateLimit {
		out.Kind = entity.KindRateLimited
		out.RetryAfter, _ = entity.RetryAfterHint(err)
	}
	return out
}

// Delay is the wait after the given failed attempt (1-based).
func (p *Policy) Delay(attempt int) time.Duration {
	delay := p.cfg.BaseDelay
	if delay <= 0 {
		return 0
	}
	if p.cfg.Backoff == BackoffExponential {
		for i := 1; i < attempt; i++ {
			delay *= 2
			if p.cfg.MaxDelay > 0 && delay >= p.cfg.MaxDelay {
				return p.cfg.MaxDelay
			}
		}
	}
	if p.cfg.MaxDelay > 0 && delay > p.cfg.MaxDelay {
		return p.cfg.MaxDelay
	}
	return delay
}

// Classify decides whether err is worth another attempt.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}
	// Local budget refusals cannot be fixed by hammering the provider.
	if errors.Is(err, entity.ErrBudgetExceeded) || errors.Is(err, entity.ErrPacingDeadline) {
		return ClassTerminal
	}
	var pe *entity.ProviderError
	if errors.As(err, &pe) {
		switch {
		case pe.Kind == entity.KindRateLimited:
			return ClassRateLimit
		case pe.Kind == entity.KindTransient:
			return ClassTransient
		case pe.StatusCode == fasthttp.StatusTooManyRequests:
			return ClassRateLimit
		case pe.StatusCode >= 500:
			return ClassTransient
		default:
			return ClassTerminal
		}
	}
	if errors.Is(err, context.Canceled) {
		return ClassTerminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	if errors.Is(err, fasthttp.ErrTimeout) ||
		errors.Is(err, fasthttp.ErrConnectionClosed) ||
		errors.Is(err, fasthttp.ErrNoFreeConns) ||
		errors.Is(err, fasthttp.ErrDialTimeout) {
		return ClassTransient
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	return ClassTerminal
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

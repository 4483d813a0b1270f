// Package ratelimit enforces per-minute and per-day request budgets against a provider.
package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

const (
	minuteWindow = time.Minute

	BudgetMinute   = "minute"
	BudgetDay      = "day"
	BudgetProvider = "provider"
)

// Policy decides what happens when a budget would be exceeded.
type Policy int

const (
	// PolicyReject refuses the request with an *entity.BudgetExceededError.
	PolicyReject Policy = iota
	// PolicyWarn logs the overrun and lets the request through.
	PolicyWarn
)

// ParsePolicy accepts "reject" (also "throw") and "warn".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject", "throw":
		return PolicyReject, nil
	case "warn", "soft", "soft_warn":
		return PolicyWarn, nil
	default:
		return PolicyReject, fmt.Errorf("unknown rate limit policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PolicyWarn {
		return "warn"
	}
	return "reject"
}

// Config describes the budgets. Zero limits disable the corresponding budget.
type Config struct {
	PerMinute int
	PerDay    int
	Policy    Policy
}

// Limiter is a sliding per-minute window plus a UTC calendar-day counter.
// All state lives behind one mutex and no I/O happens while it is held.
type Limiter struct {
	cfg     Config
	logger  port.Logger
	metrics port.MetricsRecorder
	now     func() time.Time

	mu         sync.Mutex
	window     []time.Time
	day        string
	dayCount   int
	upstreamAt time.Time // provider reported zero remaining until this instant
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m port.MetricsRecorder) Option {
	return func(l *Limiter) { l.metrics = m }
}

// New creates a Limiter.
func New(cfg Config, logger port.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ port.RequestBudget = (*Limiter)(nil)

// Acquire checks every budget and, if the request may proceed, records it.
func (l *Limiter) Acquire() error {
	l.mu.Lock()
	now := l.now()
	l.evict(now)
	l.rollDay(now)

	var exceeded *entity.BudgetExceededError
	switch {
	case now.Before(l.upstreamAt):
		exceeded = &entity.BudgetExceededError{Budget: BudgetProvider, Limit: 0, RetryAfter: l.upstreamAt.Sub(now)}
	case l.cfg.PerMinute > 0 && len(l.window) >= l.cfg.PerMinute:
		exceeded = &entity.BudgetExceededError{Budget: BudgetMinute, Limit: l.cfg.PerMinute, RetryAfter: l.window[0].Add(minuteWindow).Sub(now)}
	case l.cfg.PerDay > 0 && l.dayCount >= l.cfg.PerDay:
		exceeded = &entity.BudgetExceededError{Budget: BudgetDay, Limit: l.cfg.PerDay, RetryAfter: nextUTCMidnight(now).Sub(now)}
	}

	if exceeded != nil && l.cfg.Policy == PolicyReject {
		l.mu.Unlock()
		l.reject(exceeded)
		return exceeded
	}

	l.window = append(l.window, now)
	l.dayCount++
	l.mu.Unlock()

	if exceeded != nil {
		l.logger.Warn("Request budget exceeded, proceeding under warn policy",
			"budget", exceeded.Budget, "limit", exceeded.Limit, "retryAfter", exceeded.RetryAfter)
	}
	return nil
}

func (l *Limiter) reject(err *entity.BudgetExceededError) {
	if l.metrics != nil {
		l.metrics.BudgetRejected(err.Budget)
	}
	l.logger.Debug("Request budget exceeded, rejecting", "budget", err.Budget, "limit", err.Limit, "retryAfter", err.RetryAfter)
}

// Observe records the provider's remaining-quota headers. A zero remaining count blocks
// requests until resetAt.
func (l *Limiter) Observe(remaining int, resetAt time.Time) {
	if remaining > 0 || resetAt.IsZero() {
		return
	}
	l.mu.Lock()
	if resetAt.After(l.upstreamAt) {
		l.upstreamAt = resetAt
	}
	l.mu.Unlock()
	l.logger.Warn("Provider reports exhausted quota", "resetAt", resetAt)
}

// Usage is a point-in-time view of the counters.
type Usage struct {
	LastMinute int
	Today      int
}

// Usage returns the current counters.
func (l *Limiter) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.evict(now)
	l.rollDay(now)
	return Usage{LastMinute: len(l.window), Today: l.dayCount}
}

// evict drops timestamps that are 60s old or older.
func (l *Limiter) evict(now time.Time) {
	i := 0
	for i < len(l.window) && now.Sub(l.window[i]) >= minuteWindow {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

func (l *Limiter) rollDay(now time.Time) {
	day := now.UTC().Format(time.DateOnly)
	if day != l.day {
		l.day = day
		l.dayCount = 0
	}
}

func nextUTCMidnight(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

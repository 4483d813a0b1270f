package entity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAuthentication      = errors.New("provider authentication failed")
	ErrRateLimited         = errors.New("rate limited")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrBudgetExceeded      = errors.New("request budget exceeded")
	ErrCacheMiss           = errors.New("cache miss")
	ErrInvalidWallet       = errors.New("invalid wallet address")
	ErrUnknownNetwork      = errors.New("unknown network")
	ErrInvalidFilter       = errors.New("invalid position filter")
	ErrMetadataNotFound    = errors.New("token metadata not found")

	// ErrPacingDeadline means the next pacing token arrives after the caller's deadline.
	// It matches context.DeadlineExceeded but is never retried.
	ErrPacingDeadline = fmt.Errorf("pacing would pass the deadline: %w", context.DeadlineExceeded)
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindTransient   ErrorKind = "transient"
	KindUnavailable ErrorKind = "unavailable"
	KindBadRequest  ErrorKind = "bad_request"
	KindMalformed   ErrorKind = "malformed"
	KindNotFound    ErrorKind = "not_found"
)

// ProviderError is a classified failure from an upstream provider.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	// RetryAfter is the provider's hint for when to try again, zero when unknown.
	RetryAfter time.Duration
	// Attempts is set once a retry policy gave up.
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the taxonomy sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuth
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrProviderUnavailable:
		return e.Kind == KindTransient || e.Kind == KindUnavailable
	case ErrMetadataNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited
}

// BudgetExceededError is returned when a local request budget refuses a call.
type BudgetExceededError struct {
	Budget     string
	Limit      int
	RetryAfter time.Duration
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s budget of %d requests exhausted, retry after %s", e.Budget, e.Limit, e.RetryAfter)
}

// Is matches both ErrBudgetExceeded and ErrRateLimited.
func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded || target == ErrRateLimited
}

// RetryAfterHint extracts a retry-after hint from any error in the chain.
func RetryAfterHint(err error) (time.Duration, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter, true
	}
	var be *BudgetExceededError
	if errors.As(err, &be) && be.RetryAfter > 0 {
		return be.RetryAfter, true
	}
	return 0, false
}

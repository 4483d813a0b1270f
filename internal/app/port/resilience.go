package port

import (
	"context"
	"time"
)

// RequestBudget guards outbound calls against a provider's request quota.
type RequestBudget interface {
	// Acquire records one request, or refuses it with an *entity.BudgetExceededError.
	Acquire() error
	// Observe feeds the provider's own view of the remaining quota back into the budget.
	Observe(remaining int, resetAt time.Time)
}

// Retrier runs an operation under a retry policy.
type Retrier interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

package httpclient

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// do executes req honouring the context deadline when there is one, else the client timeout.
func do(ctx context.Context, client *fasthttp.Client, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return client.DoDeadline(req, resp, deadline)
	}
	return client.DoTimeout(req, resp, timeout)
}

// statusError classifies a non-2xx response.
func statusError(provider string, resp *fasthttp.Response, now time.Time) *entity.ProviderError {
	status := resp.StatusCode()
	pe := &entity.ProviderError{Provider: provider, StatusCode: status}
	switch {
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		pe.Kind = entity.KindAuth
	case status == fasthttp.StatusTooManyRequests:
		pe.Kind = entity.KindRateLimited
		pe.RetryAfter, _ = retryAfterDelay(string(resp.Header.Peek(fasthttp.HeaderRetryAfter)), now)
	case status == fasthttp.StatusNotFound:
		pe.Kind = entity.KindNotFound
	case status >= 500:
		pe.Kind = entity.KindTransient
		pe.RetryAfter, _ = retryAfterDelay(string(resp.Header.Peek(fasthttp.HeaderRetryAfter)), now)
	default:
		pe.Kind = entity.KindBadRequest
	}
	if body := resp.Body(); len(body) > 0 {
		// The body buffer goes back to the pool with the response.
		pe.Err = bodyError(append([]byte(nil), body...))
	}
	return pe
}

type bodyError []byte

func (b bodyError) Error() string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return "response body: " + s
}

// retryAfterDelay accepts both forms of Retry-After: delta seconds and an HTTP date.
func retryAfterDelay(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second)), true
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(when.Sub(now), 0), true
	}
	return 0, false
}

// outcomeOf is the metrics label of one provider attempt.
func outcomeOf(err error) string {
	var pe *entity.ProviderError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &pe):
		return string(pe.Kind)
	case errors.Is(err, entity.ErrBudgetExceeded):
		return "budget"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "network"
	}
}

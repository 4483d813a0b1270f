package provider

import (
	"context"
	"errors"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"golang.org/x/time/rate"
)

type metadataProviderImpl struct {
	name    string
	next    port.MetadataProvider
	limiter *rate.Limiter
	retrier port.Retrier
	metrics port.MetricsRecorder
	logger  port.Logger
}

// NewMetadataProvider wraps next with token-bucket pacing and the retry policy.
// Every attempt, retries included, waits for its own token.
func NewMetadataProvider(
	name string,
	next port.MetadataProvider,
	limiter *rate.Limiter,
	retrier port.Retrier,
	metrics port.MetricsRecorder,
	logger port.Logger,
) port.MetadataProvider {
	return &metadataProviderImpl{
		name:    name,
		next:    next,
		limiter: limiter,
		retrier: retrier,
		metrics: metrics,
		logger:  logger,
	}
}

func (p *metadataProviderImpl) FetchMetadata(ctx context.Context, token entity.TokenReference) (*entity.TokenMetadata, error) {
	var md *entity.TokenMetadata
	err := p.retrier.Do(ctx, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			// Wait refuses up front, with ctx still live, when the token lands after the deadline.
			if _, ok := ctx.Deadline(); ok && ctx.Err() == nil && p.limiter.Burst() > 0 {
				return entity.ErrPacingDeadline
			}
			return err
		}
		m, err := p.next.FetchMetadata(ctx, token)
		if err != nil {
			return err
		}
		md = m
		return nil
	})

	p.metrics.ProviderRequest(p.name, outcome(err))
	if err != nil {
		if !errors.Is(err, entity.ErrMetadataNotFound) {
			p.logger.Debug("Metadata lookup failed", "provider", p.name, "token", token.ID(), "error", err)
		}
		return nil, err
	}
	return md, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, entity.ErrMetadataNotFound):
		return "not_found"
	case errors.Is(err, entity.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

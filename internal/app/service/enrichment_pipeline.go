package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

const (
	defaultEnrichmentWidth   = 10
	defaultEnrichmentTimeout = 30 * time.Second
	defaultDrainGrace        = 250 * time.Millisecond
)

// EnrichmentConfig bounds the enrichment pipeline.
type EnrichmentConfig struct {
	// Width is the bulkhead size: the maximum number of concurrent metadata calls.
	Width int
	// Timeout is the absolute deadline of one batch, combined with the caller's context.
	Timeout time.Duration
	// DrainGrace is how long in-flight calls get to unwind after the deadline fires
	// before the batch returns without them.
	DrainGrace time.Duration
}

// EnrichmentPipeline fetches token metadata from the secondary provider with bounded parallelism.
type EnrichmentPipeline struct {
	provider port.MetadataProvider
	cfg      EnrichmentConfig
	logger   port.Logger
	metrics  port.MetricsRecorder
}

// NewEnrichmentPipeline creates a new EnrichmentPipeline.
func NewEnrichmentPipeline(
	provider port.MetadataProvider,
	cfg EnrichmentConfig,
	logger port.Logger,
	metrics port.MetricsRecorder,
) *EnrichmentPipeline {
	if cfg.Width <= 0 {
		cfg.Width = defaultEnrichmentWidth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEnrichmentTimeout
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = defaultDrainGrace
	}
	return &EnrichmentPipeline{provider: provider, cfg: cfg, logger: logger, metrics: metrics}
}

// EnrichMissing fetches metadata for every distinct token. It never fails as a whole: the report
// holds a result for each requested token, and tokens that were never dispatched or were cut off
// by the deadline are marked cancelled.
func (p *EnrichmentPipeline) EnrichMissing(ctx context.Context, tokens []entity.TokenReference) *entity.EnrichmentReport {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	tokens = uniqueTokens(tokens)
	report := &entity.EnrichmentReport{
		Results:           make(map[entity.TokenReference]entity.EnrichmentResult, len(tokens)),
		EnrichmentSummary: entity.EnrichmentSummary{Requested: len(tokens)},
	}
	if len(tokens) == 0 {
		return report
	}

	var (
		mu        sync.Mutex
		collected = make(map[entity.TokenReference]entity.EnrichmentResult, len(tokens))
		closed    bool
		wg        sync.WaitGroup
	)
	sem := make(chan struct{}, p.cfg.Width)

dispatch:
	for _, tok := range tokens {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		if ctx.Err() != nil {
			<-sem
			break
		}

		report.Dispatched++
		wg.Add(1)
		go func(tok entity.TokenReference) {
			defer wg.Done()
			defer func() { <-sem }()
			p.metrics.EnrichmentInFlight(1)
			defer p.metrics.EnrichmentInFlight(-1)

			res := p.fetchOne(ctx, tok)

			mu.Lock()
			if !closed {
				collected[tok] = res
			}
			mu.Unlock()
		}(tok)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		grace := time.NewTimer(p.cfg.DrainGrace)
		select {
		case <-finished:
		case <-grace.C:
			p.logger.Warn("Enrichment deadline passed with calls still in flight, returning without them",
				"dispatched", report.Dispatched)
		}
		grace.Stop()
	}

	mu.Lock()
	closed = true
	for _, tok := range tokens {
		res, ok := collected[tok]
		if !ok {
			res = entity.EnrichmentResult{Status: entity.EnrichmentCancelled, Err: context.Cause(ctx)}
			if res.Err == nil {
				res.Err = context.Canceled
			}
		}
		report.Results[tok] = res
		switch res.Status {
		case entity.EnrichmentSucceeded:
			report.Succeeded++
		case entity.EnrichmentFailed:
			report.Failed++
		default:
			report.Cancelled++
		}
	}
	mu.Unlock()

	p.metrics.EnrichmentItems(string(entity.EnrichmentSucceeded), report.Succeeded)
	p.metrics.EnrichmentItems(string(entity.EnrichmentFailed), report.Failed)
	p.metrics.EnrichmentItems(string(entity.EnrichmentCancelled), report.Cancelled)

	if report.Cancelled > 0 || report.Failed > 0 {
		p.logger.Info("Enrichment finished partially",
			"requested", report.Requested,
			"dispatched", report.Dispatched,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"cancelled", report.Cancelled)
	} else {
		p.logger.Debug("Enrichment finished", "requested", report.Requested)
	}
	return report
}

// fetchOne isolates a single provider call. A panicking provider becomes a failed item.
func (p *EnrichmentPipeline) fetchOne(ctx context.Context, tok entity.TokenReference) (res entity.EnrichmentResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Metadata provider panicked", "token", tok.ID(), "panic", r)
			res = entity.EnrichmentResult{Status: entity.EnrichmentFailed, Err: fmt.Errorf("metadata provider panic: %v", r)}
		}
	}()

	md, err := p.provider.FetchMetadata(ctx, tok)
	switch {
	case err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)),
		errors.Is(err, entity.ErrPacingDeadline):
		return entity.EnrichmentResult{Status: entity.EnrichmentCancelled, Err: err}
	case err != nil:
		p.logger.Debug("Metadata fetch failed", "token", tok.ID(), "error", err)
		return entity.EnrichmentResult{Status: entity.EnrichmentFailed, Err: err}
	case md == nil:
		return entity.EnrichmentResult{Status: entity.EnrichmentFailed, Err: entity.ErrMetadataNotFound}
	default:
		return entity.EnrichmentResult{Status: entity.EnrichmentSucceeded, Metadata: md}
	}
}

func uniqueTokens(tokens []entity.TokenReference) []entity.TokenReference {
	seen := make(map[entity.TokenReference]struct{}, len(tokens))
	out := make([]entity.TokenReference, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type requestIDKey struct{}

// ContextWithRequestID attaches a request id that GetPortfolio copies into its response.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// PortfolioConfig holds the service-level knobs.
type PortfolioConfig struct {
	// TrackedNetworks is used when a request names no networks. Empty means every known network.
	TrackedNetworks      []string
	Filter               entity.PositionFilter
	MaxConcurrentWallets int
}

// PortfolioServiceImpl implements port.PortfolioService.
type PortfolioServiceImpl struct {
	positions   port.PositionProvider
	networks    port.NetworkDefinitionProvider
	aggregator  *PositionAggregator
	categorizer PositionCategorizer
	cache       *TieredCache
	enricher    *EnrichmentPipeline
	logger      port.Logger
	cfg         PortfolioConfig
	now         func() time.Time
}

// NewPortfolioService creates a new instance of PortfolioServiceImpl.
func NewPortfolioService(
	positions port.PositionProvider,
	networks port.NetworkDefinitionProvider,
	aggregator *PositionAggregator,
	cache *TieredCache,
	enricher *EnrichmentPipeline,
	logger port.Logger,
	cfg PortfolioConfig,
) *PortfolioServiceImpl {
	if cfg.MaxConcurrentWallets <= 0 {
		cfg.MaxConcurrentWallets = 1
	}
	if cfg.Filter == "" {
		cfg.Filter = entity.FilterNoFilter
	}
	return &PortfolioServiceImpl{
		positions:  positions,
		networks:   networks,
		aggregator: aggregator,
		cache:      cache,
		enricher:   enricher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

var _ port.PortfolioService = (*PortfolioServiceImpl)(nil)

// GetPortfolio combines the wallet's structure (cached or discovered) with the latest prices
// (cached or enriched). Only authentication failures, exhausted retries and budget refusals
// from discovery are returned as errors; price problems degrade to fallback values.
func (s *PortfolioServiceImpl) GetPortfolio(ctx context.Context, wallet string, networks []string) (*entity.WalletPortfolio, error) {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	ids, err := s.resolveNetworks(networks)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Fetching portfolio", "wallet", wallet, "networks", ids)

	structure, structureFromCache, err := s.cache.GetOrRefreshStructure(ctx, wallet, ids,
		func(ctx context.Context) (*entity.PortfolioStructure, error) {
			raw, err := s.positions.FetchPositions(ctx, wallet, ids, s.cfg.Filter)
			if err != nil {
				return nil, err
			}
			return BuildStructure(s.aggregator, s.categorizer, wallet, ids, raw), nil
		})
	if err != nil {
		s.logger.Warn("Position discovery failed", "wallet", wallet, "error", err)
		return nil, fmt.Errorf("discover positions of %s: %w", wallet, err)
	}

	tokens := structureTokens(structure)
	prices := entity.PriceRefresh{Quotes: entity.PriceBook{}, Complete: true}
	pricesFromCache := false
	if len(tokens) > 0 {
		prices, pricesFromCache, err = s.cache.GetOrRefreshPrices(ctx, tokens,
			func(ctx context.Context) (entity.PriceRefresh, error) {
				return s.refreshPrices(ctx, structure, tokens), nil
			})
		if err != nil {
			return nil, fmt.Errorf("refresh prices of %s: %w", wallet, err)
		}
	}

	portfolio := s.combine(structure, prices)
	portfolio.RequestID = requestIDFrom(ctx)
	portfolio.StructureFromCache = structureFromCache
	portfolio.PricesFromCache = pricesFromCache
	if len(tokens) > 0 {
		summary := prices.Enrichment
		portfolio.Enrichment = &summary
	}

	s.logger.Info("Portfolio built",
		"wallet", wallet,
		"positions", len(portfolio.Positions),
		"gross_usd", portfolio.GrossValueUSD,
		"structure_cached", structureFromCache,
		"prices_cached", pricesFromCache,
		"partial", portfolio.Partial)
	return portfolio, nil
}

// FetchWalletsPortfolio builds portfolios for several wallets with bounded parallelism.
// Results keep the order of wallets; failed wallets are reported instead of aborting the batch.
func (s *PortfolioServiceImpl) FetchWalletsPortfolio(
	ctx context.Context,
	wallets []string,
	networks []string,
) ([]entity.WalletPortfolio, []entity.PortfolioError) {
	results := make([]*entity.WalletPortfolio, len(wallets))
	var (
		mu       sync.Mutex
		failures []entity.PortfolioError
	)

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentWallets)
	for i, w := range wallets {
		i, w := i, w
		g.Go(func() error {
			p, err := s.GetPortfolio(ctx, w, networks)
			if err != nil {
				s.logger.Error("Failed to fetch wallet portfolio", "wallet", w, "error", err)
				mu.Lock()
				failures = append(failures, entity.PortfolioError{WalletAddress: w, Kind: errorKind(err), Message: err.Error()})
				mu.Unlock()
				return nil
			}
			results[i] = p
			return nil
		})
	}
	// Per-wallet failures are collected above; the closures never return an error.
	g.Wait()

	portfolios := make([]entity.WalletPortfolio, 0, len(wallets))
	for _, p := range results {
		if p != nil {
			portfolios = append(portfolios, *p)
		}
	}
	s.logger.Info("Fetched wallet portfolios", "requested", len(wallets), "succeeded", len(portfolios), "failed", len(failures))
	return portfolios, failures
}

// Invalidate drops the cached structure so the next request rediscovers the wallet.
func (s *PortfolioServiceImpl) Invalidate(ctx context.Context, wallet string, networks []string) error {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return err
	}
	ids, err := s.resolveNetworks(networks)
	if err != nil {
		return err
	}
	s.cache.InvalidateStructure(ctx, wallet, ids)
	return nil
}

func normalizeWallet(wallet string) (string, error) {
	w := strings.TrimSpace(wallet)
	if !common.IsHexAddress(w) {
		return "", fmt.Errorf("%w: %q", entity.ErrInvalidWallet, wallet)
	}
	return strings.ToLower(common.HexToAddress(w).Hex()), nil
}

// resolveNetworks validates requested identifiers and returns them sorted and de-duplicated.
func (s *PortfolioServiceImpl) resolveNetworks(requested []string) ([]string, error) {
	names := requested
	if len(names) == 0 {
		names = s.cfg.TrackedNetworks
	}
	if len(names) == 0 {
		for _, def := range s.networks.GetAllNetworkDefinitions() {
			names = append(names, def.Identifier)
		}
	}

	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		def, ok := s.networks.GetNetworkDefinitionByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", entity.ErrUnknownNetwork, name)
		}
		set[def.Identifier] = struct{}{}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no networks configured", entity.ErrUnknownNetwork)
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// structureTokens lists the distinct tokens of a structure, sorted by id.
func structureTokens(s *entity.PortfolioStructure) []entity.TokenReference {
	seen := make(map[entity.TokenReference]struct{})
	var out []entity.TokenReference
	for _, p := range s.Positions {
		for _, t := range p.Tokens {
			if t.Token.Network == "" {
				continue
			}
			if _, ok := seen[t.Token]; ok {
				continue
			}
			seen[t.Token] = struct{}{}
			out = append(out, t.Token)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// refreshPrices resolves a quote per token: a fresh secondary quote first, then the unit price the
// discovery provider reported. Tokens with neither stay out of the book.
func (s *PortfolioServiceImpl) refreshPrices(ctx context.Context, structure *entity.PortfolioStructure, tokens []entity.TokenReference) entity.PriceRefresh {
	report := s.enricher.EnrichMissing(ctx, tokens)
	now := s.now().UTC()

	primary := make(map[entity.TokenReference]float64)
	for _, p := range structure.Positions {
		for _, t := range p.Tokens {
			if t.UnitPriceUSD != nil && *t.UnitPriceUSD > 0 {
				if _, ok := primary[t.Token]; !ok {
					primary[t.Token] = *t.UnitPriceUSD
				}
			}
		}
	}

	book := make(entity.PriceBook, len(tokens))
	for _, tok := range tokens {
		if res, ok := report.Results[tok]; ok && res.Status == entity.EnrichmentSucceeded && res.Metadata.PriceUSD > 0 {
			asOf := res.Metadata.AsOf
			if asOf.IsZero() {
				asOf = now
			}
			book[tok.ID()] = entity.PriceQuote{UnitPriceUSD: res.Metadata.PriceUSD, AsOf: asOf.UTC(), Source: entity.PriceSourceSecondary}
			continue
		}
		if price, ok := primary[tok]; ok {
			book[tok.ID()] = entity.PriceQuote{UnitPriceUSD: price, AsOf: now, Source: entity.PriceSourcePrimary}
		}
	}

	return entity.PriceRefresh{
		Quotes:     book,
		Complete:   report.Cancelled == 0,
		Enrichment: report.EnrichmentSummary,
	}
}

// combine reprices the structure's tokens with the quotes and computes the totals.
func (s *PortfolioServiceImpl) combine(structure *entity.PortfolioStructure, prices entity.PriceRefresh) *entity.WalletPortfolio {
	portfolio := &entity.WalletPortfolio{
		WalletAddress:    structure.Wallet,
		Networks:         structure.Networks,
		GeneratedAt:      s.now().UTC(),
		Positions:        make([]entity.PricedPosition, 0, len(structure.Positions)),
		ByCategory:       make(map[entity.Category]entity.CategoryTotal),
		ByNetwork:        make(map[string]entity.NetworkTotal),
		SkippedPositions: structure.Skipped,
	}

	gross, net := decimal.Zero, decimal.Zero
	for _, p := range structure.Positions {
		priced, partial := pricePosition(p, prices.Quotes)
		if partial {
			portfolio.Partial = true
		}
		portfolio.Positions = append(portfolio.Positions, priced)

		gross = gross.Add(decimal.NewFromFloat(priced.ValueUSD))
		net = net.Add(decimal.NewFromFloat(priced.NetValueUSD))

		ct := portfolio.ByCategory[p.Category]
		ct.Count++
		ct.ValueUSD = addFloat(ct.ValueUSD, priced.ValueUSD)
		ct.NetValueUSD = addFloat(ct.NetValueUSD, priced.NetValueUSD)
		portfolio.ByCategory[p.Category] = ct

		nt := portfolio.ByNetwork[p.Network]
		nt.Count++
		nt.ValueUSD = addFloat(nt.ValueUSD, priced.ValueUSD)
		nt.NetValueUSD = addFloat(nt.NetValueUSD, priced.NetValueUSD)
		portfolio.ByNetwork[p.Network] = nt
	}
	portfolio.GrossValueUSD = gross.InexactFloat64()
	portfolio.NetValueUSD = net.InexactFloat64()
	return portfolio
}

// pricePosition reports partial when at least one token kept its discovery value.
func pricePosition(p entity.CategorizedPosition, quotes entity.PriceBook) (entity.PricedPosition, bool) {
	priced := entity.PricedPosition{
		CategorizedPosition: p,
		PricedTokens:        make([]entity.PricedToken, 0, len(p.Tokens)),
	}
	if len(p.Tokens) == 0 {
		priced.ValueUSD = p.TotalValueUSD
		priced.NetValueUSD = p.TotalValueUSD
		if p.Details.Lending != nil {
			priced.NetValueUSD = p.Details.Lending.NetValueUSD
		}
		return priced, false
	}

	partial := false
	gross, net := decimal.Zero, decimal.Zero
	for _, t := range p.Tokens {
		pt := entity.PricedToken{
			Token:  t.Token,
			Symbol: t.Symbol,
			Role:   t.Role,
			Amount: t.Amount.String(),
		}
		value := decimal.NewFromFloat(t.ValueUSD).Abs()
		if q, ok := quotes.Lookup(t.Token); ok {
			asOf := q.AsOf
			pt.UnitPriceUSD = q.UnitPriceUSD
			pt.PriceSource = q.Source
			pt.PriceAsOf = &asOf
			value = t.Amount.Abs().Mul(decimal.NewFromFloat(q.UnitPriceUSD))
		} else {
			pt.PriceSource = entity.PriceSourceFallback
			if t.UnitPriceUSD != nil {
				pt.UnitPriceUSD = *t.UnitPriceUSD
			}
			partial = true
		}
		pt.ValueUSD = value.InexactFloat64()
		priced.PricedTokens = append(priced.PricedTokens, pt)

		gross = gross.Add(value)
		if t.Role == entity.TokenRoleBorrowed {
			net = net.Sub(value)
		} else {
			net = net.Add(value)
		}
	}
	priced.ValueUSD = gross.InexactFloat64()
	priced.NetValueUSD = net.InexactFloat64()
	return priced, partial
}

func addFloat(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

// errorKind maps an error onto the provider error taxonomy for batch reports.
func errorKind(err error) entity.ErrorKind {
	var pe *entity.ProviderError
	switch {
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, entity.ErrRateLimited):
		return entity.KindRateLimited
	case errors.Is(err, entity.ErrInvalidWallet), errors.Is(err, entity.ErrUnknownNetwork), errors.Is(err, entity.ErrInvalidFilter):
		return entity.KindBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return entity.KindUnavailable
	default:
		return ""
	}
}

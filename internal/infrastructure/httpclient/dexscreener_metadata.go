package httpclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"go.uber.org/zap"
)

var stablecoinSymbols = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

// DEXScreenerMetadataProvider answers port.MetadataProvider from DEX Screener pairs.
type DEXScreenerMetadataProvider struct {
	client   DEXScreenerClient
	networks port.NetworkDefinitionProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewDEXScreenerMetadataProvider creates a new DEXScreenerMetadataProvider.
func NewDEXScreenerMetadataProvider(client DEXScreenerClient, networks port.NetworkDefinitionProvider, logger *zap.Logger) *DEXScreenerMetadataProvider {
	return &DEXScreenerMetadataProvider{
		client:   client,
		networks: networks,
		logger:   logger.Named("DEXScreenerMetadata"),
		now:      time.Now,
	}
}

var _ port.MetadataProvider = (*DEXScreenerMetadataProvider)(nil)

// FetchMetadata prices one token. Native tokens are priced through the network's wrapped native token.
func (p *DEXScreenerMetadataProvider) FetchMetadata(ctx context.Context, token entity.TokenReference) (*entity.TokenMetadata, error) {
	def, ok := p.networks.GetNetworkDefinitionByName(token.Network)
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownNetwork, token.Network)
	}
	if def.DEXScreenerChainID == "" {
		return nil, &entity.ProviderError{Provider: dexScreenerProvider, Kind: entity.KindNotFound,
			Err: fmt.Errorf("network %s has no DEX Screener chain id", def.Identifier)}
	}

	address := token.Address
	if token.IsNative() {
		wrapped := entity.NormalizeTokenAddress(def.WrappedNativeTokenAddress)
		if wrapped == entity.NativeAddress {
			return nil, &entity.ProviderError{Provider: dexScreenerProvider, Kind: entity.KindNotFound,
				Err: fmt.Errorf("network %s has no wrapped native token", def.Identifier)}
		}
		address = wrapped
	}

	pairs, err := p.client.GetTokenPairsByAddresses(ctx, def.DEXScreenerChainID, []string{address})
	if err != nil {
		return nil, err
	}

	best := selectBestPair(pairs, address)
	if best == nil {
		p.logger.Debug("No priced pair for token", zap.String("token", token.ID()), zap.Int("pairs", len(pairs)))
		return nil, &entity.ProviderError{Provider: dexScreenerProvider, Kind: entity.KindNotFound,
			Err: fmt.Errorf("no priced pair for %s", token.ID())}
	}
	price, err := strconv.ParseFloat(best.PriceUsd, 64)
	if err != nil {
		return nil, &entity.ProviderError{Provider: dexScreenerProvider, Kind: entity.KindMalformed,
			Err: fmt.Errorf("price %q of pair %s: %w", best.PriceUsd, best.PairAddress, err)}
	}

	md := &entity.TokenMetadata{
		Token:        token,
		Symbol:       best.BaseToken.Symbol,
		Name:         best.BaseToken.Name,
		PriceUSD:     price,
		LiquidityUSD: liquidityUSD(best),
		PairAddress:  best.PairAddress,
		DexID:        best.DexID,
		AsOf:         p.now().UTC(),
	}
	if token.IsNative() {
		md.Symbol = def.NativeSymbol
		md.Name = def.Name
	}
	return md, nil
}

// selectBestPair prefers the most liquid pair quoted in a stablecoin, then the most liquid pair overall.
// Pairs without a usable USD price are ignored.
func selectBestPair(pairs []PairData, baseTokenAddress string) *PairData {
	var bestOverall, bestStable *PairData
	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if price, err := strconv.ParseFloat(pair.PriceUsd, 64); err != nil || price <= 0 {
			continue
		}

		if _, isStable := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; isStable {
			if bestStable == nil || liquidityUSD(pair) > liquidityUSD(bestStable) {
				bestStable = pair
			}
		}
		if bestOverall == nil || liquidityUSD(pair) > liquidityUSD(bestOverall) {
			bestOverall = pair
		}
	}
	if bestStable != nil {
		return bestStable
	}
	return bestOverall
}

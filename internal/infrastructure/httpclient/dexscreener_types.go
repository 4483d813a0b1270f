package httpclient

import "portfolio_aggregator/internal/pkg/utils"

// DEXTokenPairs is the wrapped response shape of the DEX Screener API.
// The /tokens/v1 endpoint returns a bare array instead; the client accepts both.
type DEXTokenPairs struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []PairData `json:"pairs"`
}

// PairData contains the fields of a trading pair this service prices from.
type PairData struct {
	ChainID     string        `json:"chainId"`
	DexID       string        `json:"dexId"`
	URL         string        `json:"url"`
	PairAddress string        `json:"pairAddress"`
	BaseToken   DEXToken      `json:"baseToken"`
	QuoteToken  DEXToken      `json:"quoteToken"`
	PriceNative string        `json:"priceNative"`
	PriceUsd    string        `json:"priceUsd"`
	Volume      PairVolume    `json:"volume"`
	Liquidity   *DEXLiquidity `json:"liquidity"` // null for some pairs
	Fdv         float64       `json:"fdv"`
	MarketCap   float64       `json:"marketCap"`
}

// DEXToken represents a token in a trading pair.
type DEXToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DEXLiquidity represents the liquidity information for a pair.
type DEXLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// PairVolume represents trading volume over different periods.
type PairVolume struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

func liquidityUSD(p *PairData) float64 {
	return utils.SafeDeref(p.Liquidity, func(l DEXLiquidity) float64 { return l.Usd })
}

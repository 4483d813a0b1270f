package entity

import "time"

// WalletPortfolio is the combined structure + price view returned for one wallet.
type WalletPortfolio struct {
	RequestID     string    `json:"requestId,omitempty"`
	WalletAddress string    `json:"walletAddress"`
	Networks      []string  `json:"networks"`
	GeneratedAt   time.Time `json:"generatedAt"`

	Positions  []PricedPosition          `json:"positions"`
	ByCategory map[Category]CategoryTotal `json:"byCategory"`
	ByNetwork  map[string]NetworkTotal    `json:"byNetwork"`

	// GrossValueUSD sums every position's priced value. NetValueUSD subtracts the borrowed side.
	GrossValueUSD float64 `json:"grossValueUsd"`
	NetValueUSD   float64 `json:"netValueUsd"`

	SkippedPositions   int               `json:"skippedPositions"`
	StructureFromCache bool              `json:"structureFromCache"`
	PricesFromCache    bool              `json:"pricesFromCache"`
	Enrichment         *EnrichmentSummary `json:"enrichment,omitempty"`
	// Partial is set when at least one token kept its fallback value.
	Partial bool `json:"partial"`
}

// PricedPosition is a categorized position with token values re-derived from the price layer.
type PricedPosition struct {
	CategorizedPosition
	PricedTokens []PricedToken `json:"pricedTokens"`
	// ValueUSD sums the priced token values, borrowed tokens included as positive amounts.
	ValueUSD float64 `json:"valueUsd"`
	// NetValueUSD is ValueUSD with borrowed tokens subtracted.
	NetValueUSD float64 `json:"netValueUsd"`
}

// PricedToken is a position token with the quote that priced it.
type PricedToken struct {
	Token        TokenReference `json:"token"`
	Symbol       string         `json:"symbol,omitempty"`
	Role         TokenRole      `json:"role"`
	Amount       string         `json:"amount"`
	UnitPriceUSD float64        `json:"unitPriceUsd"`
	ValueUSD     float64        `json:"valueUsd"`
	PriceSource  PriceSource    `json:"priceSource"`
	PriceAsOf    *time.Time     `json:"priceAsOf,omitempty"`
}

// CategoryTotal summarises one category bucket.
type CategoryTotal struct {
	Count       int     `json:"count"`
	ValueUSD    float64 `json:"valueUsd"`
	NetValueUSD float64 `json:"netValueUsd"`
}

// NetworkTotal summarises one network.
type NetworkTotal struct {
	Count       int     `json:"count"`
	ValueUSD    float64 `json:"valueUsd"`
	NetValueUSD float64 `json:"netValueUsd"`
}

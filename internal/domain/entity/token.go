package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress is the address placeholder used for a network's native currency.
const NativeAddress = "native"

// ZeroAddress represents the Ethereum zero address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// EeeeAddress is the common pseudo-address for native currency used by aggregators.
const EeeeAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// TokenReference joins structure tokens with price entries.
type TokenReference struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

// NewTokenReference builds a normalised reference. EVM addresses are lower-cased,
// native placeholders collapse to NativeAddress, other address formats are kept as given.
func NewTokenReference(network, address string) TokenReference {
	return TokenReference{
		Network: strings.ToLower(strings.TrimSpace(network)),
		Address: NormalizeTokenAddress(address),
	}
}

// NormalizeTokenAddress applies the TokenReference address rules to a single address.
func NormalizeTokenAddress(address string) string {
	a := strings.TrimSpace(address)
	switch strings.ToLower(a) {
	case "", NativeAddress, ZeroAddress, EeeeAddress:
		return NativeAddress
	}
	if common.IsHexAddress(a) {
		return strings.ToLower(common.HexToAddress(a).Hex())
	}
	return a
}

// IsNative reports whether the reference points at the network's native currency.
func (r TokenReference) IsNative() bool {
	return r.Address == NativeAddress
}

// ID is the string form used as the token identifier in cache keys and price maps.
func (r TokenReference) ID() string {
	return r.Network + ":" + r.Address
}

func (r TokenReference) String() string {
	return r.ID()
}

// ParseTokenID is the inverse of TokenReference.ID.
func ParseTokenID(id string) (TokenReference, error) {
	network, address, ok := strings.Cut(id, ":")
	if !ok || network == "" || address == "" {
		return TokenReference{}, fmt.Errorf("malformed token id %q", id)
	}
	return NewTokenReference(network, address), nil
}

// TokenMetadata is what the secondary provider knows about a token.
type TokenMetadata struct {
	Token        TokenReference `json:"token"`
	Symbol       string         `json:"symbol"`
	Name         string         `json:"name"`
	PriceUSD     float64        `json:"priceUsd"`
	LiquidityUSD float64        `json:"liquidityUsd"`
	PairAddress  string         `json:"pairAddress,omitempty"`
	DexID        string         `json:"dexId,omitempty"`
	AsOf         time.Time      `json:"asOf"`
}

// PriceSource tells where a unit price came from.
type PriceSource string

const (
	PriceSourcePrimary   PriceSource = "primary"
	PriceSourceSecondary PriceSource = "secondary"
	// PriceSourceFallback marks values that kept the raw discovery value because no quote was available.
	PriceSourceFallback PriceSource = "fallback"
)

// PriceQuote is a unit price owned by the price layer.
type PriceQuote struct {
	UnitPriceUSD float64     `json:"unitPriceUsd"`
	AsOf         time.Time   `json:"asOf"`
	Source       PriceSource `json:"source"`
}

// PriceBook maps TokenReference.ID to its quote.
type PriceBook map[string]PriceQuote

// Lookup returns the quote for ref, if any.
func (b PriceBook) Lookup(ref TokenReference) (PriceQuote, bool) {
	q, ok := b[ref.ID()]
	return q, ok
}

// PriceRefresh is the value of the price cache namespace: the quotes of one token set and the
// enrichment counters that produced them. Incomplete refreshes are served but not cached.
type PriceRefresh struct {
	Quotes     PriceBook         `json:"quotes"`
	Complete   bool              `json:"complete"`
	Enrichment EnrichmentSummary `json:"enrichment"`
}

package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PositionType is the closed vocabulary for the provider's position type tag.
type PositionType string

const (
	PositionTypeWallet    PositionType = "wallet"
	PositionTypeDeposit   PositionType = "deposit"
	PositionTypeLoan      PositionType = "loan"
	PositionTypeBorrow    PositionType = "borrow"
	PositionTypeStaked    PositionType = "staked"
	PositionTypeLocked    PositionType = "locked"
	PositionTypeReward    PositionType = "reward"
	PositionTypeLiquidity PositionType = "liquidity"
	PositionTypeYield     PositionType = "yield"
	PositionTypeUnknown   PositionType = "unknown"
)

var positionTypeAliases = map[string]PositionType{
	"wallet":    PositionTypeWallet,
	"deposit":   PositionTypeDeposit,
	"loan":      PositionTypeLoan,
	"borrow":    PositionTypeBorrow,
	"borrowed":  PositionTypeBorrow,
	"staked":    PositionTypeStaked,
	"staking":   PositionTypeStaked,
	"locked":    PositionTypeLocked,
	"reward":    PositionTypeReward,
	"rewards":   PositionTypeReward,
	"claimable": PositionTypeReward,
	"liquidity": PositionTypeLiquidity,
	"yield":     PositionTypeYield,
}

// ParsePositionType maps a provider tag onto the closed vocabulary.
// Anything it does not recognise becomes PositionTypeUnknown.
func ParsePositionType(raw string) PositionType {
	if t, ok := positionTypeAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return PositionTypeUnknown
}

// ProtocolModule is the closed vocabulary for the provider's protocol module hint.
type ProtocolModule string

const (
	ModuleNone    ProtocolModule = ""
	ModuleLending ProtocolModule = "lending"
	ModuleFarming ProtocolModule = "farming"
	ModuleStaking ProtocolModule = "staking"
	ModuleVault   ProtocolModule = "vault"
	ModuleUnknown ProtocolModule = "unknown"
)

// ParseProtocolModule maps a provider module hint onto the closed vocabulary.
// An empty hint stays ModuleNone so that callers can tell "absent" from "unrecognised".
func ParseProtocolModule(raw string) ProtocolModule {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ModuleNone
	case "lending":
		return ModuleLending
	case "farming":
		return ModuleFarming
	case "staking":
		return ModuleStaking
	case "vault":
		return ModuleVault
	default:
		return ModuleUnknown
	}
}

// TokenRole describes which side of a position a token sits on.
type TokenRole string

const (
	TokenRoleSupplied   TokenRole = "supplied"
	TokenRoleBorrowed   TokenRole = "borrowed"
	TokenRoleReward     TokenRole = "reward"
	TokenRoleUnderlying TokenRole = "underlying"
)

// RoleForPositionType derives the token role implied by a position type.
func RoleForPositionType(t PositionType) TokenRole {
	switch t {
	case PositionTypeLoan, PositionTypeBorrow:
		return TokenRoleBorrowed
	case PositionTypeReward:
		return TokenRoleReward
	case PositionTypeWallet, PositionTypeUnknown:
		return TokenRoleUnderlying
	default:
		return TokenRoleSupplied
	}
}

// PositionToken is one token leg of a position.
type PositionToken struct {
	Token        TokenReference  `json:"token"`
	Symbol       string          `json:"symbol,omitempty"`
	Role         TokenRole       `json:"role"`
	Amount       decimal.Decimal `json:"amount"`
	Decimals     uint8           `json:"decimals"`
	UnitPriceUSD *float64        `json:"unitPriceUsd,omitempty"`
	ValueUSD     float64         `json:"valueUsd"`
}

// RawPosition is one position as returned by the discovery provider,
// validated once at ingestion.
type RawPosition struct {
	ID              string          `json:"id"`
	ProtocolID      string          `json:"protocolId"`
	ProtocolName    string          `json:"protocolName,omitempty"`
	Name            string          `json:"name,omitempty"`
	Network         string          `json:"network"`
	PositionType    PositionType    `json:"positionType"`
	RawPositionType string          `json:"rawPositionType,omitempty"`
	CorrelationKey  string          `json:"groupId,omitempty"`
	Module          ProtocolModule  `json:"protocolModule,omitempty"`
	Market          string          `json:"market,omitempty"`
	PoolAddress     string          `json:"poolAddress,omitempty"`
	Tokens          []PositionToken `json:"tokens"`
	ValueUSD        float64         `json:"valueUsd"`
	HealthFactor    *float64        `json:"healthFactor,omitempty"`
	NetAPY          *float64        `json:"netApy,omitempty"`
}

// MarketKey identifies the lending market a position belongs to.
// Positions without an explicit market fall back to their pool address.
func (p RawPosition) MarketKey() string {
	if p.Market != "" {
		return strings.ToLower(p.Market)
	}
	return strings.ToLower(p.PoolAddress)
}

// PositionFilter selects which slice of a wallet the discovery provider returns.
type PositionFilter string

const (
	FilterOnlySimple  PositionFilter = "only_simple"
	FilterOnlyComplex PositionFilter = "only_complex"
	FilterNoFilter    PositionFilter = "no_filter"
)

// ParsePositionFilter validates a filter value. Empty input means FilterNoFilter.
func ParsePositionFilter(raw string) (PositionFilter, error) {
	switch PositionFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterNoFilter:
		return FilterNoFilter, nil
	case FilterOnlySimple:
		return FilterOnlySimple, nil
	case FilterOnlyComplex:
		return FilterOnlyComplex, nil
	default:
		return "", ErrInvalidFilter
	}
}

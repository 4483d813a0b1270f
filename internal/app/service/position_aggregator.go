package service

import (
	"math"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// PositionAggregator groups raw positions into composite domain positions.
type PositionAggregator struct {
	logger port.Logger
}

// NewPositionAggregator creates a new PositionAggregator.
func NewPositionAggregator(logger port.Logger) *PositionAggregator {
	return &PositionAggregator{logger: logger}
}

type positionGroup struct {
	key     string
	members []entity.RawPosition
}

// Aggregate partitions raw positions by correlation key (or lending market) and applies the
// farming and lending merge rules to each group. Malformed positions are skipped and counted.
// Output order follows the first appearance of each group in the input.
func (a *PositionAggregator) Aggregate(raw []entity.RawPosition) entity.AggregationResult {
	result := entity.AggregationResult{Positions: make([]entity.AggregatedPosition, 0, len(raw))}

	seen := make(map[string]struct{}, len(raw))
	index := make(map[string]int)
	var groups []*positionGroup

	for _, p := range raw {
		if reason := invalidReason(p, seen); reason != "" {
			a.logger.Warn("Skipping malformed raw position", "id", p.ID, "protocol", p.ProtocolID, "reason", reason)
			result.Skipped++
			if p.ID != "" {
				result.SkippedIDs = append(result.SkippedIDs, p.ID)
			}
			continue
		}
		seen[p.ID] = struct{}{}

		key := groupKey(p)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &positionGroup{key: key})
		}
		groups[i].members = append(groups[i].members, p)
	}

	for _, g := range groups {
		result.Positions = append(result.Positions, a.aggregateGroup(g)...)
	}

	a.logger.Debug("Aggregated raw positions",
		"raw", len(raw), "groups", len(groups), "positions", len(result.Positions), "skipped", result.Skipped)
	return result
}

func invalidReason(p entity.RawPosition, seen map[string]struct{}) string {
	if strings.TrimSpace(p.ID) == "" {
		return "missing id"
	}
	if _, dup := seen[p.ID]; dup {
		return "duplicate id"
	}
	if strings.TrimSpace(p.Network) == "" {
		return "missing network"
	}
	if !finite(p.ValueUSD) {
		return "non-finite value"
	}
	for _, t := range p.Tokens {
		if !finite(t.ValueUSD) {
			return "non-finite token value"
		}
	}
	return ""
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// groupKey partitions by correlation key. Ungrouped lending positions with a known market
// are grouped by (protocol, network, market); everything else is a singleton.
func groupKey(p entity.RawPosition) string {
	if p.CorrelationKey != "" {
		return "group:" + p.CorrelationKey
	}
	if p.Module == entity.ModuleLending && p.MarketKey() != "" {
		return "market:" + strings.ToLower(p.ProtocolID) + ":" + p.Network + ":" + p.MarketKey()
	}
	return "id:" + p.ID
}

// groupModule returns the module shared by every member, or ModuleNone when members disagree
// or carry no hint. The hint is what selects a merge rule; type tags alone never do.
func groupModule(members []entity.RawPosition) entity.ProtocolModule {
	module := members[0].Module
	for _, m := range members[1:] {
		if m.Module != module {
			return entity.ModuleNone
		}
	}
	return module
}

func hasAnyType(members []entity.RawPosition, types ...entity.PositionType) bool {
	for _, m := range members {
		for _, t := range types {
			if m.PositionType == t {
				return true
			}
		}
	}
	return false
}

func (a *PositionAggregator) aggregateGroup(g *positionGroup) []entity.AggregatedPosition {
	switch module := groupModule(g.members); {
	case module == entity.ModuleFarming && hasAnyType(g.members, entity.PositionTypeStaked, entity.PositionTypeReward):
		return a.mergeFarming(g.members)
	case module == entity.ModuleLending && hasAnyType(g.members, entity.PositionTypeDeposit, entity.PositionTypeLoan, entity.PositionTypeBorrow):
		return a.mergeLending(g.members)
	default:
		return passThrough(g.members)
	}
}

func (a *PositionAggregator) mergeFarming(members []entity.RawPosition) []entity.AggregatedPosition {
	var staked, rewards, rest []entity.RawPosition
	for _, m := range members {
		switch m.PositionType {
		case entity.PositionTypeReward:
			rewards = append(rewards, m)
		case entity.PositionTypeStaked, entity.PositionTypeDeposit, entity.PositionTypeLocked:
			staked = append(staked, m)
		default:
			rest = append(rest, m)
		}
	}

	stakedValue := sumValues(staked)
	rewardsValue := sumValues(rewards)

	merged := newComposite(entity.MergeFarming, append(append([]entity.RawPosition{}, staked...), rewards...))
	merged.TotalValueUSD = stakedValue.Add(rewardsValue).InexactFloat64()
	merged.Details.Farming = &entity.FarmingDetails{
		StakedValueUSD:  stakedValue.InexactFloat64(),
		RewardsValueUSD: rewardsValue.InexactFloat64(),
		StakedCount:     len(staked),
		RewardsCount:    len(rewards),
	}

	out := []entity.AggregatedPosition{merged}
	if len(rest) > 0 {
		a.logger.Debug("Farming group carries positions outside the staked/reward vocabulary",
			"group", members[0].CorrelationKey, "count", len(rest))
		out = append(out, passThrough(rest)...)
	}
	return out
}

type marketBucket struct {
	supplied []entity.RawPosition
	borrowed []entity.RawPosition
}

func (a *PositionAggregator) mergeLending(members []entity.RawPosition) []entity.AggregatedPosition {
	order := make([]string, 0, 1)
	buckets := make(map[string]*marketBucket)
	var rest []entity.RawPosition

	for _, m := range members {
		var borrowed bool
		switch m.PositionType {
		case entity.PositionTypeDeposit:
		case entity.PositionTypeLoan, entity.PositionTypeBorrow:
			borrowed = true
		default:
			rest = append(rest, m)
			continue
		}

		key := strings.ToLower(m.ProtocolID) + "|" + m.MarketKey()
		b, ok := buckets[key]
		if !ok {
			b = &marketBucket{}
			buckets[key] = b
			order = append(order, key)
		}
		if borrowed {
			b.borrowed = append(b.borrowed, m)
		} else {
			b.supplied = append(b.supplied, m)
		}
	}

	out := make([]entity.AggregatedPosition, 0, len(order)+len(rest))
	for _, key := range order {
		out = append(out, lendingComposite(buckets[key]))
	}
	if len(rest) > 0 {
		out = append(out, passThrough(rest)...)
	}
	return out
}

func lendingComposite(b *marketBucket) entity.AggregatedPosition {
	all := append(append([]entity.RawPosition{}, b.supplied...), b.borrowed...)
	supplied := sumValues(b.supplied)
	borrowed := sumValues(b.borrowed).Abs()

	merged := newComposite(entity.MergeLending, all)
	merged.TotalValueUSD = sumValues(all).InexactFloat64()

	details := &entity.LendingDetails{
		SuppliedValueUSD: supplied.InexactFloat64(),
		BorrowedValueUSD: borrowed.InexactFloat64(),
		NetValueUSD:      supplied.Sub(borrowed).InexactFloat64(),
		IsDebt:           borrowed.IsPositive() && !supplied.IsPositive(),
		SuppliedCount:    len(b.supplied),
		BorrowedCount:    len(b.borrowed),
	}
	for _, m := range all {
		if details.HealthFactor == nil && m.HealthFactor != nil {
			details.HealthFactor = m.HealthFactor
		}
		if details.NetAPY == nil && m.NetAPY != nil {
			details.NetAPY = m.NetAPY
		}
	}
	merged.Details.Lending = details
	return merged
}

func passThrough(members []entity.RawPosition) []entity.AggregatedPosition {
	out := make([]entity.AggregatedPosition, 0, len(members))
	for _, m := range members {
		out = append(out, entity.AggregatedPosition{
			ID:            m.ID,
			ProtocolID:    m.ProtocolID,
			Label:         label(m),
			Network:       m.Network,
			Module:        m.Module,
			PositionTypes: []entity.PositionType{m.PositionType},
			PoolAddress:   m.PoolAddress,
			MemberIDs:     []string{m.ID},
			TotalValueUSD: m.ValueUSD,
			Tokens:        mergeTokens([]entity.RawPosition{m}),
			Details:       entity.PositionDetails{Merge: entity.MergeNone},
		})
	}
	return out
}

// newComposite fills the fields every merged position derives the same way from its members.
func newComposite(kind entity.MergeKind, members []entity.RawPosition) entity.AggregatedPosition {
	first := members[0]
	p := entity.AggregatedPosition{
		ID:         string(kind) + ":" + first.ID,
		ProtocolID: first.ProtocolID,
		Label:      label(first),
		Network:    first.Network,
		Module:     first.Module,
		MemberIDs:  make([]string, 0, len(members)),
		Tokens:     mergeTokens(members),
		Details:    entity.PositionDetails{Merge: kind},
	}
	seenTypes := make(map[entity.PositionType]struct{})
	for _, m := range members {
		p.MemberIDs = append(p.MemberIDs, m.ID)
		if _, ok := seenTypes[m.PositionType]; !ok {
			seenTypes[m.PositionType] = struct{}{}
			p.PositionTypes = append(p.PositionTypes, m.PositionType)
		}
		if p.PoolAddress == "" {
			p.PoolAddress = m.PoolAddress
		}
	}
	return p
}

func label(p entity.RawPosition) string {
	switch {
	case p.ProtocolName != "":
		return p.ProtocolName
	case p.Name != "":
		return p.Name
	default:
		return p.ProtocolID
	}
}

func sumValues(members []entity.RawPosition) decimal.Decimal {
	total := decimal.Zero
	for _, m := range members {
		total = total.Add(decimal.NewFromFloat(m.ValueUSD))
	}
	return total
}

// mergeTokens concatenates member tokens, combining legs of the same token and role.
// Tokens without an explicit role take the role implied by their position type.
func mergeTokens(members []entity.RawPosition) []entity.PositionToken {
	type legKey struct {
		id   string
		role entity.TokenRole
	}
	index := make(map[legKey]int)
	var out []entity.PositionToken

	for _, m := range members {
		for _, t := range m.Tokens {
			if t.Role == "" {
				t.Role = entity.RoleForPositionType(m.PositionType)
			}
			k := legKey{id: t.Token.ID(), role: t.Role}
			i, ok := index[k]
			if !ok {
				index[k] = len(out)
				out = append(out, t)
				continue
			}
			leg := &out[i]
			leg.Amount = leg.Amount.Add(t.Amount)
			leg.ValueUSD = decimal.NewFromFloat(leg.ValueUSD).Add(decimal.NewFromFloat(t.ValueUSD)).InexactFloat64()
			if leg.UnitPriceUSD == nil {
				leg.UnitPriceUSD = t.UnitPriceUSD
			}
			if leg.Symbol == "" {
				leg.Symbol = t.Symbol
			}
		}
	}
	if out == nil {
		out = []entity.PositionToken{}
	}
	return out
}

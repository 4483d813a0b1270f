package service

import "portfolio_aggregator/internal/domain/entity"

type categoryRule struct {
	category entity.Category
	matches  func(p entity.AggregatedPosition) bool
}

// categoryRules is evaluated top to bottom, first match wins. The order is part of the cache
// format: reordering it changes the category of already cached structures.
var categoryRules = []categoryRule{
	{entity.CategoryLending, func(p entity.AggregatedPosition) bool {
		return p.Module == entity.ModuleLending
	}},
	{entity.CategoryStaking, func(p entity.AggregatedPosition) bool {
		return p.Module == entity.ModuleStaking && p.HasType(entity.PositionTypeStaked)
	}},
	{entity.CategoryFarming, func(p entity.AggregatedPosition) bool {
		return p.Module == entity.ModuleFarming
	}},
	{entity.CategoryLiquidityPool, func(p entity.AggregatedPosition) bool {
		return p.PoolAddress != "" && (p.HasType(entity.PositionTypeLiquidity) || p.HasType(entity.PositionTypeDeposit))
	}},
	{entity.CategoryVault, func(p entity.AggregatedPosition) bool {
		return p.Module == entity.ModuleVault
	}},
	{entity.CategoryYield, func(p entity.AggregatedPosition) bool {
		return p.HasType(entity.PositionTypeYield)
	}},
	{entity.CategoryRewards, func(p entity.AggregatedPosition) bool {
		return p.HasType(entity.PositionTypeReward) && !p.HasType(entity.PositionTypeStaked)
	}},
}

// PositionCategorizer assigns exactly one category to an aggregated position.
// It holds no state; the result depends only on the module hint and the type tags.
type PositionCategorizer struct{}

// Categorize returns the category of the first matching rule, CategoryOther when none match.
func (PositionCategorizer) Categorize(p entity.AggregatedPosition) entity.Category {
	for _, r := range categoryRules {
		if r.matches(p) {
			return r.category
		}
	}
	return entity.CategoryOther
}

// CategorizeAll tags every position, keeping input order.
func (c PositionCategorizer) CategorizeAll(positions []entity.AggregatedPosition) []entity.CategorizedPosition {
	out := make([]entity.CategorizedPosition, 0, len(positions))
	for _, p := range positions {
		out = append(out, entity.CategorizedPosition{AggregatedPosition: p, Category: c.Categorize(p)})
	}
	return out
}

// BuildStructure runs aggregation and categorization over one discovery result and
// produces the value stored in the structure cache.
func BuildStructure(
	agg *PositionAggregator,
	cat PositionCategorizer,
	wallet string,
	networks []string,
	raw []entity.RawPosition,
) *entity.PortfolioStructure {
	aggregated := agg.Aggregate(raw)
	structure := &entity.PortfolioStructure{
		Wallet:    wallet,
		Networks:  networks,
		Positions: cat.CategorizeAll(aggregated.Positions),
		ByNetwork: make(map[string][]string),
		Skipped:   aggregated.Skipped,
	}
	for _, p := range structure.Positions {
		structure.ByNetwork[p.Network] = append(structure.ByNetwork[p.Network], p.ID)
	}
	return structure
}

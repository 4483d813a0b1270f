package entity

// Category is the closed set of buckets a position can be classified into.
type Category string

const (
	CategoryFarming       Category = "farming"
	CategoryLending       Category = "lending"
	CategoryStaking       Category = "staking"
	CategoryLiquidityPool Category = "liquidity_pool"
	CategoryYield         Category = "yield"
	CategoryRewards       Category = "rewards"
	CategoryVault         Category = "vault"
	CategoryOther         Category = "other"
)

// AllCategories lists every category in rule priority order, Other last.
var AllCategories = []Category{
	CategoryLending,
	CategoryStaking,
	CategoryFarming,
	CategoryLiquidityPool,
	CategoryVault,
	CategoryYield,
	CategoryRewards,
	CategoryOther,
}

package entity

// MergeKind records which merge rule produced an AggregatedPosition.
type MergeKind string

const (
	MergeNone    MergeKind = "none"
	MergeFarming MergeKind = "farming"
	MergeLending MergeKind = "lending"
)

// FarmingDetails holds the staked/reward split of a merged farming position.
type FarmingDetails struct {
	StakedValueUSD  float64 `json:"stakedValueUsd"`
	RewardsValueUSD float64 `json:"rewardsValueUsd"`
	StakedCount     int     `json:"stakedCount"`
	RewardsCount    int     `json:"rewardsCount"`
}

// LendingDetails holds the supplied/borrowed netting of a merged lending position.
type LendingDetails struct {
	SuppliedValueUSD float64  `json:"suppliedValueUsd"`
	BorrowedValueUSD float64  `json:"borrowedValueUsd"`
	NetValueUSD      float64  `json:"netValueUsd"`
	IsDebt           bool     `json:"isDebt"`
	SuppliedCount    int      `json:"suppliedCount"`
	BorrowedCount    int      `json:"borrowedCount"`
	HealthFactor     *float64 `json:"healthFactor,omitempty"`
	NetAPY           *float64 `json:"netApy,omitempty"`
}

// PositionDetails is the variant bag attached to an AggregatedPosition.
// At most one of Farming and Lending is set, matching Merge.
type PositionDetails struct {
	Merge   MergeKind       `json:"merge"`
	Farming *FarmingDetails `json:"farming,omitempty"`
	Lending *LendingDetails `json:"lending,omitempty"`
}

// AggregatedPosition is a raw position or a merge of several raw positions.
// TotalValueUSD is always the sum of the contributing raw ValueUSD.
type AggregatedPosition struct {
	ID            string          `json:"id"`
	ProtocolID    string          `json:"protocolId"`
	Label         string          `json:"label"`
	Network       string          `json:"network"`
	Module        ProtocolModule  `json:"protocolModule,omitempty"`
	PositionTypes []PositionType  `json:"positionTypes"`
	PoolAddress   string          `json:"poolAddress,omitempty"`
	MemberIDs     []string        `json:"memberIds"`
	TotalValueUSD float64         `json:"totalValueUsd"`
	Tokens        []PositionToken `json:"tokens"`
	Details       PositionDetails `json:"details"`
}

// HasType reports whether any contributing raw position carried the tag.
func (p AggregatedPosition) HasType(t PositionType) bool {
	for _, pt := range p.PositionTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// AggregationResult is the outcome of one aggregation pass.
type AggregationResult struct {
	Positions  []AggregatedPosition `json:"positions"`
	Skipped    int                  `json:"skipped"`
	SkippedIDs []string             `json:"skippedIds,omitempty"`
}

// CategorizedPosition is an AggregatedPosition tagged with exactly one category.
type CategorizedPosition struct {
	AggregatedPosition
	Category Category `json:"category"`
}

// PortfolioStructure is the value held by the structure cache namespace.
type PortfolioStructure struct {
	Wallet    string                `json:"wallet"`
	Networks  []string              `json:"networks"`
	Positions []CategorizedPosition `json:"positions"`
	// ByNetwork maps a network identifier to the ids of its positions, in position order.
	ByNetwork map[string][]string `json:"byNetwork"`
	Skipped   int                 `json:"skipped"`
}

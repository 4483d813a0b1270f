package entity

// NetworkDefinition holds the static description of a supported network.
type NetworkDefinition struct {
	ChainID      uint64 `json:"chainId" yaml:"chainId"`
	Name         string `json:"name" yaml:"name"`
	Identifier   string `json:"identifier" yaml:"identifier"` // e.g. "ethereum", "bsc"
	NativeSymbol string `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals     uint8  `json:"decimals" yaml:"decimals"`
	// PrimaryChainID is the chain id the discovery provider uses in filter[chain_ids].
	PrimaryChainID            string `json:"primaryChainId" yaml:"primaryChainId"`
	DEXScreenerChainID        string `json:"dexScreenerChainId" yaml:"dexScreenerChainId"`
	WrappedNativeTokenAddress string `json:"wrappedNativeTokenAddress" yaml:"wrappedNativeTokenAddress"`
	BlockExplorerURL          string `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
}

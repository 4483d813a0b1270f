package networkdefinition

import (
	"fmt"
	"sort"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

// NetworkDefinitionProvider is the registry of networks the service can query.
type NetworkDefinitionProvider struct {
	logger  port.Logger
	byID    map[string]entity.NetworkDefinition
	ordered []entity.NetworkDefinition
}

// Predefined network definitions. PrimaryChainID is the discovery provider's chain slug.
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkDefinition{
		ChainID:                   1,
		Name:                      "Ethereum Mainnet",
		Identifier:                "ethereum",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "ethereum",
		DEXScreenerChainID:        "ethereum",
		WrappedNativeTokenAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", // WETH
		BlockExplorerURL:          "https://etherscan.io",
	}
	BSC = entity.NetworkDefinition{
		ChainID:                   56,
		Name:                      "BNB Smart Chain",
		Identifier:                "bsc",
		NativeSymbol:              "BNB",
		Decimals:                  18,
		PrimaryChainID:            "binance-smart-chain",
		DEXScreenerChainID:        "bsc",
		WrappedNativeTokenAddress: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", // WBNB
		BlockExplorerURL:          "https://bscscan.com",
	}
	Polygon = entity.NetworkDefinition{
		ChainID:                   137,
		Name:                      "Polygon PoS",
		Identifier:                "polygon",
		NativeSymbol:              "POL",
		Decimals:                  18,
		PrimaryChainID:            "polygon",
		DEXScreenerChainID:        "polygon",
		WrappedNativeTokenAddress: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", // WPOL
		BlockExplorerURL:          "https://polygonscan.com",
	}
	Arbitrum = entity.NetworkDefinition{
		ChainID:                   42161,
		Name:                      "Arbitrum One",
		Identifier:                "arbitrum",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "arbitrum",
		DEXScreenerChainID:        "arbitrum",
		WrappedNativeTokenAddress: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		BlockExplorerURL:          "https://arbiscan.io",
	}
	Avalanche = entity.NetworkDefinition{
		ChainID:                   43114,
		Name:                      "Avalanche C-Chain",
		Identifier:                "avalanche",
		NativeSymbol:              "AVAX",
		Decimals:                  18,
		PrimaryChainID:            "avalanche",
		DEXScreenerChainID:        "avalanche",
		WrappedNativeTokenAddress: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", // WAVAX
		BlockExplorerURL:          "https://snowtrace.io",
	}
	Base = entity.NetworkDefinition{
		ChainID:                   8453,
		Name:                      "Base Mainnet",
		Identifier:                "base",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "base",
		DEXScreenerChainID:        "base",
		WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006",
		BlockExplorerURL:          "https://basescan.org",
	}
	Blast = entity.NetworkDefinition{
		ChainID:                   81457,
		Name:                      "Blast Mainnet",
		Identifier:                "blast",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "blast",
		DEXScreenerChainID:        "blast",
		WrappedNativeTokenAddress: "0x4300000000000000000000000000000000000004",
		BlockExplorerURL:          "https://blastscan.io",
	}
	Celo = entity.NetworkDefinition{
		ChainID:                   42220,
		Name:                      "Celo Mainnet",
		Identifier:                "celo",
		NativeSymbol:              "CELO",
		Decimals:                  18,
		PrimaryChainID:            "celo",
		DEXScreenerChainID:        "celo",
		WrappedNativeTokenAddress: "0x471EcE3750Da237f93B8E339c536989b8978a438", // CELO is itself an ERC-20
		BlockExplorerURL:          "https://celoscan.io",
	}
	Fantom = entity.NetworkDefinition{
		ChainID:                   250,
		Name:                      "Fantom Opera",
		Identifier:                "fantom",
		NativeSymbol:              "FTM",
		Decimals:                  18,
		PrimaryChainID:            "fantom",
		DEXScreenerChainID:        "fantom",
		WrappedNativeTokenAddress: "0x21be370D5312f44cB42ce377BC9b8a0cEF1A4C83", // WFTM
		BlockExplorerURL:          "https://ftmscan.com",
	}
	Gnosis = entity.NetworkDefinition{
		ChainID:                   100,
		Name:                      "Gnosis Chain",
		Identifier:                "gnosis",
		NativeSymbol:              "xDAI",
		Decimals:                  18,
		PrimaryChainID:            "xdai",
		DEXScreenerChainID:        "gnosischain",
		WrappedNativeTokenAddress: "0xe91D153E0b41518A2Ce8DD3D7944Fa863463A97d", // WXDAI
		BlockExplorerURL:          "https://gnosisscan.io",
	}
	Linea = entity.NetworkDefinition{
		ChainID:                   59144,
		Name:                      "Linea Mainnet",
		Identifier:                "linea",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "linea",
		DEXScreenerChainID:        "linea",
		WrappedNativeTokenAddress: "0xe5D7C2a44FfDDf6b295A15c148167daaAf5Cf34f",
		BlockExplorerURL:          "https://lineascan.build",
	}
	Mantle = entity.NetworkDefinition{
		ChainID:                   5000,
		Name:                      "Mantle Network",
		Identifier:                "mantle",
		NativeSymbol:              "MNT",
		Decimals:                  18,
		PrimaryChainID:            "mantle",
		DEXScreenerChainID:        "mantle",
		WrappedNativeTokenAddress: "0x78c1b0C915c4FAA5FffA6CAbf0219DA63d7f4cb8", // WMNT
		BlockExplorerURL:          "https://explorer.mantle.xyz",
	}
	Optimism = entity.NetworkDefinition{
		ChainID:                   10,
		Name:                      "OP Mainnet",
		Identifier:                "optimism",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "optimism",
		DEXScreenerChainID:        "optimism",
		WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006",
		BlockExplorerURL:          "https://optimistic.etherscan.io",
	}
	Scroll = entity.NetworkDefinition{
		ChainID:                   534352,
		Name:                      "Scroll",
		Identifier:                "scroll",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "scroll",
		DEXScreenerChainID:        "scroll",
		WrappedNativeTokenAddress: "0x5300000000000000000000000000000000000004",
		BlockExplorerURL:          "https://scrollscan.com",
	}
	ZkSync = entity.NetworkDefinition{ // zkSync Era
		ChainID:                   324,
		Name:                      "zkSync Era Mainnet",
		Identifier:                "zksync",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "zksync-era",
		DEXScreenerChainID:        "zksync",
		WrappedNativeTokenAddress: "0x5AEa5775959fBC2557Cc8789bC1bf90A239D9a91",
		BlockExplorerURL:          "https://explorer.zksync.io",
	}
	Zora = entity.NetworkDefinition{
		ChainID:                   7777777,
		Name:                      "Zora Mainnet",
		Identifier:                "zora",
		NativeSymbol:              "ETH",
		Decimals:                  18,
		PrimaryChainID:            "zora",
		DEXScreenerChainID:        "zora",
		WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006",
		BlockExplorerURL:          "https://explorer.zora.energy",
	}
)

// KnownDefinitions returns the predefined networks.
func KnownDefinitions() []entity.NetworkDefinition {
	return []entity.NetworkDefinition{
		Ethereum, BSC, Polygon, Arbitrum, Avalanche, Base, Blast, Celo,
		Fantom, Gnosis, Linea, Mantle, Optimism, Scroll, ZkSync, Zora,
	}
}

// NewNetworkDefinitionProvider builds the registry from the predefined networks plus custom
// definitions from configuration. A custom definition replaces a predefined one with the same identifier.
func NewNetworkDefinitionProvider(log port.Logger, custom []entity.NetworkDefinition) (*NetworkDefinitionProvider, error) {
	p := &NetworkDefinitionProvider{
		logger: log,
		byID:   make(map[string]entity.NetworkDefinition),
	}
	for _, def := range KnownDefinitions() {
		p.byID[def.Identifier] = def
	}

	for i, def := range custom {
		def.Identifier = strings.ToLower(strings.TrimSpace(def.Identifier))
		if def.Identifier == "" {
			return nil, fmt.Errorf("network definition #%d has no identifier", i)
		}
		if def.Name == "" {
			def.Name = def.Identifier
		}
		if def.Decimals == 0 {
			def.Decimals = 18
		}
		if _, known := p.byID[def.Identifier]; known {
			p.logger.Info(fmt.Sprintf("Network '%s' overridden by configuration", def.Identifier))
		}
		p.byID[def.Identifier] = def
	}

	p.ordered = make([]entity.NetworkDefinition, 0, len(p.byID))
	for _, def := range p.byID {
		p.ordered = append(p.ordered, def)
	}
	sort.Slice(p.ordered, func(i, j int) bool { return p.ordered[i].Identifier < p.ordered[j].Identifier })

	p.logger.Debug(fmt.Sprintf("NetworkDefinitionProvider initialized with %d networks", len(p.ordered)))
	return p, nil
}

var _ port.NetworkDefinitionProvider = (*NetworkDefinitionProvider)(nil)

// GetAllNetworkDefinitions returns every known network ordered by identifier.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	if p == nil {
		return []entity.NetworkDefinition{}
	}
	defsCopy := make([]entity.NetworkDefinition, len(p.ordered))
	copy(defsCopy, p.ordered)
	return defsCopy
}

// GetNetworkDefinitionByName looks a network up by identifier or display name, case-insensitively.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(nameOrIdentifier string) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	key := strings.ToLower(strings.TrimSpace(nameOrIdentifier))
	if def, ok := p.byID[key]; ok {
		return def, true
	}
	for _, def := range p.ordered {
		if strings.EqualFold(def.Name, key) {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}

package port

import "portfolio_aggregator/internal/domain/entity"

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	// GetAllNetworkDefinitions returns all available network definitions as a slice.
	GetAllNetworkDefinitions() []entity.NetworkDefinition

	// GetNetworkDefinitionByName returns a specific network definition by its identifier.
	// The boolean is false when the identifier is not known.
	GetNetworkDefinitionByName(nameOrIdentifier string) (entity.NetworkDefinition, bool)
}

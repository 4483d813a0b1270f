package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// PositionProvider is the primary discovery provider.
type PositionProvider interface {
	// FetchPositions returns every raw position of the wallet on the given networks,
	// following pagination until the provider has no further page.
	FetchPositions(ctx context.Context, wallet string, networks []string, filter entity.PositionFilter) ([]entity.RawPosition, error)
}

// MetadataProvider is the secondary price/metadata provider. It answers one token per call.
type MetadataProvider interface {
	FetchMetadata(ctx context.Context, token entity.TokenReference) (*entity.TokenMetadata, error)
}

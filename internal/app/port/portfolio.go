package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// PortfolioService defines the interface for building wallet portfolios.
type PortfolioService interface {
	// GetPortfolio returns the combined structure and price view of one wallet.
	// An empty network list means the configured tracked networks.
	GetPortfolio(ctx context.Context, wallet string, networks []string) (*entity.WalletPortfolio, error)

	// FetchWalletsPortfolio builds portfolios for several wallets. Wallets that fail are reported
	// in the error slice and do not abort the batch.
	FetchWalletsPortfolio(ctx context.Context, wallets []string, networks []string) ([]entity.WalletPortfolio, []entity.PortfolioError)

	// Invalidate drops the cached structure of a wallet so the next request rediscovers it.
	Invalidate(ctx context.Context, wallet string, networks []string) error
}

package port

// WalletProvider defines the interface for fetching wallet addresses.
type WalletProvider interface {
	// GetWallets returns checksummed addresses in file order, without duplicates.
	GetWallets() ([]string, error)
}

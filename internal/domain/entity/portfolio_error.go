package entity

// PortfolioError reports a wallet that could not be processed in a batch.
type PortfolioError struct {
	WalletAddress string    `json:"walletAddress"`
	Kind          ErrorKind `json:"kind,omitempty"`
	Message       string    `json:"message"`
}

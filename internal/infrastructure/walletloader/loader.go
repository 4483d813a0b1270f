package walletloader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"portfolio_aggregator/internal/app/port"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultWalletFilePath is used when no path is configured.
const DefaultWalletFilePath = "data/wallets.txt"

// WalletFileLoader implements the port.WalletProvider interface by loading wallets from a file.
type WalletFileLoader struct {
	filePath string
	logger   port.Logger
}

// NewWalletFileLoader creates a new WalletFileLoader.
func NewWalletFileLoader(filePath string, logger port.Logger) port.WalletProvider {
	if filePath == "" {
		filePath = DefaultWalletFilePath
	}
	return &WalletFileLoader{
		filePath: filePath,
		logger:   logger,
	}
}

// GetWallets reads one address per line. Blank lines and # comments are ignored,
// invalid addresses are skipped with a warning.
func (l *WalletFileLoader) GetWallets() ([]string, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file %s: %w", l.filePath, err)
	}
	defer file.Close()

	var wallets []string
	seen := make(map[common.Address]struct{})
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !common.IsHexAddress(line) {
			l.logger.Warn("Skipping invalid wallet address", "file", l.filePath, "line_number", lineNum, "address", line)
			continue
		}
		addr := common.HexToAddress(line)
		if _, dup := seen[addr]; dup {
			l.logger.Debug("Skipping duplicate wallet address", "file", l.filePath, "line_number", lineNum)
			continue
		}
		seen[addr] = struct{}{}
		wallets = append(wallets, addr.Hex())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallet file %s: %w", l.filePath, err)
	}

	l.logger.Info("Wallets loaded successfully from file", "count", len(wallets), "path", l.filePath)
	return wallets, nil
}

package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBigInt converts a raw integer amount to a human-readable string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return ScaleBigInt(amount, decimals).String()
}

// ScaleBigInt divides amount by 10^decimals without losing precision.
func ScaleBigInt(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ParseQuantity reads a token quantity. The provider's numeric string wins; otherwise the
// raw integer is scaled by decimals.
func ParseQuantity(numeric, raw string, decimals uint8) (decimal.Decimal, error) {
	if s := strings.TrimSpace(numeric); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid numeric quantity %q: %w", numeric, err)
		}
		return d, nil
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid integer quantity %q", raw)
	}
	return ScaleBigInt(amount, decimals), nil
}

package airdrop

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// MaxDecimals keeps 10^decimals inside 256 bits.
const MaxDecimals = 77

// ToFixedPoint converts a non-negative decimal string to an integer scaled
// by 10^decimals. Fraction digits beyond decimals are truncated, never
// rounded. No float conversion happens on the way.
func ToFixedPoint(amount string, decimals int) (*uint256.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals must be between 0 and %d", MaxDecimals)
	}
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if hasDot && strings.Contains(fracPart, ".") {
		return nil, fmt.Errorf("amount %q has more than one decimal point", amount)
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("amount %q has no digits", amount)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, fmt.Errorf("amount %q is not a non-negative decimal number", amount)
	}

	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	} else {
		fracPart += strings.Repeat("0", decimals-len(fracPart))
	}

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	b, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a decimal number", amount)
	}
	value, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", amount)
	}
	return value, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Felt is a fixed-width 256-bit ledger field value. The zero value is 0x0.
type Felt struct {
	v uint256.Int
}

// ParseFelt accepts 0x-prefixed hex or plain decimal.
func ParseFelt(input string) (Felt, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Felt{}, fmt.Errorf("empty field value")
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
		if digits == "" {
			return Felt{}, fmt.Errorf("invalid field value: %s", input)
		}
	}
	if strings.HasPrefix(digits, "-") || strings.HasPrefix(digits, "+") {
		return Felt{}, fmt.Errorf("invalid field value: %s", input)
	}

	b, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return Felt{}, fmt.Errorf("invalid field value: %s", input)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return Felt{}, fmt.Errorf("field value exceeds 256 bits: %s", input)
	}
	return Felt{v: *u}, nil
}

// MustParseFelt is ParseFelt for constants; it panics on bad input.
func MustParseFelt(input string) Felt {
	f, err := ParseFelt(input)
	if err != nil {
		panic(err)
	}
	return f
}

// FeltFromUint64 builds a Felt from a small integer.
func FeltFromUint64(x uint64) Felt {
	var f Felt
	f.v.SetUint64(x)
	return f
}

// FeltFromUint256 copies u into a Felt.
func FeltFromUint256(u *uint256.Int) Felt {
	var f Felt
	if u != nil {
		f.v.Set(u)
	}
	return f
}

// FeltFromBytes interprets b as a big-endian value. Inputs longer than
// 32 bytes keep only the low 32.
func FeltFromBytes(b []byte) Felt {
	var f Felt
	f.v.SetBytes(b)
	return f
}

// String is the canonical form: minimal lower-case 0x hex.
func (f Felt) String() string {
	return f.v.Hex()
}

// Uint256 returns a copy of the underlying integer.
func (f Felt) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&f.v)
}

func (f Felt) Equal(other Felt) bool {
	return f.v.Eq(&other.v)
}

func (f Felt) IsZero() bool {
	return f.v.IsZero()
}

func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Felt) UnmarshalText(text []byte) error {
	parsed, err := ParseFelt(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// CanonicalKey normalizes a textual field value into its dedup form.
func CanonicalKey(input string) (string, error) {
	f, err := ParseFelt(input)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

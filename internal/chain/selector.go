package chain

import (
	"github.com/ethereum/go-ethereum/crypto"

	"airdropScope/internal/model"
)

// Selector is starknet_keccak(name): keccak256 truncated to 250 bits.
// It names both event keys and entry points.
func Selector(name string) model.Felt {
	h := crypto.Keccak256([]byte(name))
	h[0] &= 0x03
	return model.FeltFromBytes(h)
}

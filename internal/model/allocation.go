package model

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// Allocation is a single recipient and the fixed-point amount owed to it.
type Allocation struct {
	Recipient Felt
	Amount    *uint256.Int
}

type allocationJSON struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// MarshalJSON writes the amount as a decimal string so ledgers stay readable.
func (a Allocation) MarshalJSON() ([]byte, error) {
	amount := "0"
	if a.Amount != nil {
		amount = a.Amount.ToBig().String()
	}
	return json.Marshal(allocationJSON{Recipient: a.Recipient.String(), Amount: amount})
}

func (a *Allocation) UnmarshalJSON(data []byte) error {
	var raw allocationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	recipient, err := ParseFelt(raw.Recipient)
	if err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	amount, err := uint256.FromDecimal(raw.Amount)
	if err != nil {
		return fmt.Errorf("amount %q: %w", raw.Amount, err)
	}
	a.Recipient = recipient
	a.Amount = amount
	return nil
}

// Batch is a contiguous slice of the allocation list submitted as one unit.
type Batch struct {
	Index       int          `json:"index"`
	Allocations []Allocation `json:"allocations"`
}

// Call is a single state-changing invocation against the ledger.
type Call struct {
	Target   Felt   `json:"target"`
	Method   string `json:"method"`
	Calldata []Felt `json:"calldata"`
}

// TxHandle identifies a submitted call while it awaits finality.
type TxHandle string

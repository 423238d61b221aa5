package airdrop

import (
	"fmt"

	"airdropScope/internal/model"
)

// InvalidInputError rejects an allocation list or batch size before any
// unit is submitted. Index is -1 when the problem is not tied to one row.
type InvalidInputError struct {
	Index  int
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Index < 0 {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input at allocation %d: %s", e.Index, e.Reason)
}

// Plan partitions allocations, in order, into ceil(len/maxBatchSize)
// contiguous batches. Every batch but the last holds exactly maxBatchSize
// allocations. Batch indices are 0-based.
func Plan(allocations []model.Allocation, maxBatchSize int) ([]model.Batch, error) {
	if maxBatchSize <= 0 {
		return nil, &InvalidInputError{Index: -1, Reason: fmt.Sprintf("max batch size must be positive, got %d", maxBatchSize)}
	}
	for i, a := range allocations {
		if a.Amount == nil {
			return nil, &InvalidInputError{Index: i, Reason: "amount is missing"}
		}
		if a.Recipient.IsZero() {
			return nil, &InvalidInputError{Index: i, Reason: "recipient is missing"}
		}
	}

	batches := make([]model.Batch, 0, (len(allocations)+maxBatchSize-1)/maxBatchSize)
	for start := 0; start < len(allocations); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(allocations) {
			end = len(allocations)
		}
		batches = append(batches, model.Batch{
			Index:       len(batches),
			Allocations: allocations[start:end:end],
		})
	}
	return batches, nil
}

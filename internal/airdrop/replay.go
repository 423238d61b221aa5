package airdrop

import (
	"fmt"
	"sort"

	"airdropScope/internal/model"
)

// ReplayPlan turns ledger entries back into batches, in batch order. When
// the same batch was ledgered more than once the latest entry wins. The
// returned builder resubmits the recorded call and falls back to template
// for entries that never got one.
func ReplayPlan(entries []model.FailureEntry, fallback CallBuilder) ([]model.Batch, CallBuilder) {
	latest := make(map[int]model.FailureEntry, len(entries))
	for _, entry := range entries {
		latest[entry.BatchIndex] = entry
	}

	indices := make([]int, 0, len(latest))
	for index := range latest {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	batches := make([]model.Batch, 0, len(indices))
	calls := make(map[int]model.Call, len(indices))
	for _, index := range indices {
		entry := latest[index]
		batches = append(batches, entry.Batch())
		if len(entry.Call.Calldata) > 0 && !entry.Call.Target.IsZero() {
			calls[index] = entry.Call
		}
	}
	return batches, &recordedCalls{calls: calls, fallback: fallback}
}

type recordedCalls struct {
	calls    map[int]model.Call
	fallback CallBuilder
}

func (r *recordedCalls) Build(batch model.Batch) (model.Call, error) {
	if call, ok := r.calls[batch.Index]; ok {
		return call, nil
	}
	if r.fallback == nil {
		return model.Call{}, fmt.Errorf("batch %d has no recorded call", batch.Index)
	}
	return r.fallback.Build(batch)
}

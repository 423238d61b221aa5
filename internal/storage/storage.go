package storage

import (
	"context"

	"airdropScope/internal/model"
)

// KeyStore persists the set of dedup keys seen so far.
type KeyStore interface {
	// Load returns the full known set. A backing store that cannot be
	// decoded fails with *CorruptStateError.
	Load(ctx context.Context) (*KeySet, error)
	// Flush durably records every key in set. Readers never observe a
	// partially written state.
	Flush(ctx context.Context, set *KeySet) error
}

// FailureLedger is an append-only record of units that could not be confirmed.
type FailureLedger interface {
	Append(ctx context.Context, entry model.FailureEntry) error
	// Location describes where entries end up, for run summaries.
	Location() string
}

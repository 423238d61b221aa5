package model

import "time"

// SubmissionStatus is the terminal state of one unit.
type SubmissionStatus string

const (
	StatusSuccess SubmissionStatus = "success"
	StatusFailed  SubmissionStatus = "failed"
)

// SubmissionOutcome reports how a batch fared against the ledger.
// TxHandle belongs to the final attempt and is empty when that attempt
// never got one. TxHandles lists every handle obtained, in order.
type SubmissionOutcome struct {
	Batch     Batch
	Call      Call
	Status    SubmissionStatus
	TxHandle  TxHandle
	TxHandles []TxHandle
	Attempts  int
	Err       error
	ErrorKind string
}

// Failed reports whether the unit must be ledgered.
func (o SubmissionOutcome) Failed() bool {
	return o.Status == StatusFailed
}

// FailureEntry is one line of the failure ledger. It carries everything
// needed to resubmit the unit without re-deriving it.
type FailureEntry struct {
	BatchIndex  int          `json:"batch_index"`
	Allocations []Allocation `json:"allocations"`
	Call        Call         `json:"call"`
	Attempts    int          `json:"attempts"`
	TxHandle    TxHandle     `json:"tx_handle,omitempty"`
	TxHandles   []TxHandle   `json:"tx_handles,omitempty"`
	Error       string       `json:"error"`
	ErrorKind   string       `json:"error_kind"`
	FailedAt    string       `json:"failed_at"`
}

// NewFailureEntry builds the ledger record for a failed outcome.
func NewFailureEntry(o SubmissionOutcome, at time.Time) FailureEntry {
	msg := ""
	if o.Err != nil {
		msg = o.Err.Error()
	}
	return FailureEntry{
		BatchIndex:  o.Batch.Index,
		Allocations: o.Batch.Allocations,
		Call:        o.Call,
		Attempts:    o.Attempts,
		TxHandle:    o.TxHandle,
		TxHandles:   o.TxHandles,
		Error:       msg,
		ErrorKind:   o.ErrorKind,
		FailedAt:    at.UTC().Format(time.RFC3339Nano),
	}
}

// Batch rebuilds the unit recorded in the entry.
func (e FailureEntry) Batch() Batch {
	return Batch{Index: e.BatchIndex, Allocations: e.Allocations}
}

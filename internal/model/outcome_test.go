package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureEntryKeepsFullBatch(t *testing.T) {
	batch := Batch{
		Index: 3,
		Allocations: []Allocation{
			{Recipient: MustParseFelt("0x111"), Amount: uint256.NewInt(5)},
			{Recipient: MustParseFelt("0x222"), Amount: uint256.MustFromDecimal("123500000000000000000")},
		},
	}
	outcome := SubmissionOutcome{
		Batch:     batch,
		Call:      Call{Target: MustParseFelt("0x99"), Method: "batch_create", Calldata: []Felt{FeltFromUint64(2)}},
		Status:    StatusFailed,
		Attempts:  3,
		Err:       errors.New("rate limited"),
		ErrorKind: "transient",
	}

	entry := NewFailureEntry(outcome, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded FailureEntry
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "rate limited", decoded.Error)
	assert.Equal(t, "2024-01-01T00:00:00Z", decoded.FailedAt)
	rebuilt := decoded.Batch()
	require.Len(t, rebuilt.Allocations, 2)
	assert.Equal(t, 3, rebuilt.Index)
	assert.Equal(t, "0x222", rebuilt.Allocations[1].Recipient.String())
	assert.Equal(t, "123500000000000000000", rebuilt.Allocations[1].Amount.ToBig().String())
	assert.Equal(t, "batch_create", decoded.Call.Method)
}

func TestAllocationJSONAmountIsDecimal(t *testing.T) {
	a := Allocation{Recipient: MustParseFelt("0xabc"), Amount: uint256.NewInt(1000)}
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"recipient":"0xabc","amount":"1000"}`, string(data))
}

package airdrop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airdropScope/internal/model"
	"airdropScope/internal/retry"
)

func newTestDistributor(t *testing.T, h *retrierHarness) (*Distributor, *recordingSleeper) {
	t.Helper()
	pacing := &recordingSleeper{}
	d := NewDistributor(h.retrier, DistributorConfig{
		InterUnitDelay: 5 * time.Second,
		ErrorDelay:     30 * time.Second,
		LedgerLocation: h.ledger.Location(),
		Sleeper:        pacing,
	}, nil)
	return d, pacing
}

func TestDistributorContinuesPastExhaustedUnit(t *testing.T) {
	h := newRetrierHarness(t, flatPolicy)
	d, pacing := newTestDistributor(t, h)

	batches, err := Plan(allocations(5), 2)
	require.NoError(t, err)
	timeout := retry.Transient(errors.New("finality timeout"))
	h.chain.failWait(batches[1].Allocations[0].Recipient, timeout, timeout, timeout)

	summary, err := d.Run(context.Background(), batches)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		Total:          3,
		Confirmed:      2,
		Failed:         1,
		FailedIndices:  []int{1},
		LedgerLocation: "memory",
		Processed:      3,
	}, summary)

	// 1 + 3 + 1 submissions, last batch still sent.
	assert.Len(t, h.chain.submissions, 5)
	assert.Equal(t, batches[2].Allocations[0].Recipient, h.chain.submissions[4].Calldata[1])

	require.Len(t, h.ledger.entries, 1)
	assert.Equal(t, 1, h.ledger.entries[0].BatchIndex)

	assert.Equal(t, []time.Duration{5 * time.Second, 30 * time.Second}, pacing.delays, "no delay after the last unit")
}

func TestDistributorSubmitsInOrder(t *testing.T) {
	h := newRetrierHarness(t, flatPolicy)
	d, pacing := newTestDistributor(t, h)

	batches, err := Plan(allocations(6), 2)
	require.NoError(t, err)

	summary, err := d.Run(context.Background(), batches)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Confirmed)
	require.Len(t, h.chain.submissions, 3)
	for i, call := range h.chain.submissions {
		assert.Equal(t, batches[i].Allocations[0].Recipient, call.Calldata[1])
	}
	assert.Len(t, pacing.delays, 2)
}

func TestDistributorStopsWhenLedgerFails(t *testing.T) {
	h := newRetrierHarness(t, retry.Policy{MaxAttempts: 1})
	h.ledger.err = errors.New("read-only file system")
	d, _ := newTestDistributor(t, h)

	batches, err := Plan(allocations(3), 1)
	require.NoError(t, err)
	h.chain.failSubmit(batches[0].Allocations[0].Recipient, errors.New("rejected"))

	summary, err := d.Run(context.Background(), batches)
	require.Error(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Len(t, h.chain.submissions, 1, "nothing after the lost record is sent")
}

func TestDistributorInterruptedUnitIsLedgered(t *testing.T) {
	h := newRetrierHarness(t, flatPolicy)
	d, _ := newTestDistributor(t, h)

	batches, err := Plan(allocations(3), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.chain.onSubmit = func() {
		if len(h.chain.submissions) == 2 {
			cancel()
		}
	}

	summary, err := d.Run(ctx, batches)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []int{1}, summary.FailedIndices)
	assert.Len(t, h.chain.submissions, 2)

	require.Len(t, h.ledger.entries, 1)
	assert.Equal(t, ErrorKindInterrupted, h.ledger.entries[0].ErrorKind)
	assert.Equal(t, 1, h.ledger.entries[0].BatchIndex)
}

func TestDistributorCancelledBeforeStart(t *testing.T) {
	h := newRetrierHarness(t, flatPolicy)
	d, _ := newTestDistributor(t, h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batches, err := Plan(allocations(2), 1)
	require.NoError(t, err)
	summary, err := d.Run(ctx, batches)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, h.chain.submissions)
}

func TestReplayPlanUsesRecordedCalls(t *testing.T) {
	tmpl := batchCreateTemplate(t)
	batches, err := Plan(allocations(4), 2)
	require.NoError(t, err)

	recorded, err := tmpl.Build(batches[1])
	require.NoError(t, err)
	recorded.Method = "batch_create_v2"

	entries := []model.FailureEntry{
		{BatchIndex: 1, Allocations: batches[1].Allocations, Call: model.Call{}},
		{BatchIndex: 0, Allocations: batches[0].Allocations},
		{BatchIndex: 1, Allocations: batches[1].Allocations, Call: recorded},
	}

	replay, builder := ReplayPlan(entries, tmpl)
	require.Len(t, replay, 2)
	assert.Equal(t, 0, replay[0].Index)
	assert.Equal(t, 1, replay[1].Index)

	call, err := builder.Build(replay[1])
	require.NoError(t, err)
	assert.Equal(t, "batch_create_v2", call.Method)

	call, err = builder.Build(replay[0])
	require.NoError(t, err)
	assert.Equal(t, "batch_create", call.Method)

	_, noFallback := ReplayPlan(entries[:2], nil)
	_, err = noFallback.Build(replay[0])
	assert.Error(t, err)
}

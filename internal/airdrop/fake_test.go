package airdrop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"airdropScope/internal/model"
)

// fakeLedger implements Submitter and FinalityWaiter. Errors queued per
// batch index (read from the first recipient) are returned in order.
type fakeLedger struct {
	mu          sync.Mutex
	submitErrs  map[string][]error
	waitErrs    map[string][]error
	submissions []model.Call
	waits       []model.TxHandle
	waitKeys    []string
	onSubmit    func()
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{submitErrs: make(map[string][]error), waitErrs: make(map[string][]error)}
}

func callKey(call model.Call) string {
	if len(call.Calldata) < 2 {
		return ""
	}
	return call.Calldata[1].String()
}

func (f *fakeLedger) failSubmit(recipient model.Felt, errs ...error) {
	f.submitErrs[recipient.String()] = append(f.submitErrs[recipient.String()], errs...)
}

func (f *fakeLedger) failWait(recipient model.Felt, errs ...error) {
	f.waitErrs[recipient.String()] = append(f.waitErrs[recipient.String()], errs...)
}

func (f *fakeLedger) Submit(ctx context.Context, call model.Call) (model.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, call)
	if f.onSubmit != nil {
		f.onSubmit()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := callKey(call)
	if queue := f.submitErrs[key]; len(queue) > 0 {
		f.submitErrs[key] = queue[1:]
		return "", queue[0]
	}
	handle := model.TxHandle(fmt.Sprintf("0xtx%d", len(f.submissions)))
	f.waitKeys = append(f.waitKeys, key)
	return handle, nil
}

func (f *fakeLedger) WaitForFinality(_ context.Context, handle model.TxHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, handle)
	key := f.waitKeys[len(f.waitKeys)-1]
	if queue := f.waitErrs[key]; len(queue) > 0 {
		f.waitErrs[key] = queue[1:]
		return queue[0]
	}
	return nil
}

type memLedger struct {
	entries []model.FailureEntry
	err     error
}

func (m *memLedger) Append(_ context.Context, entry model.FailureEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memLedger) Location() string { return "memory" }

type recordingSleeper struct{ delays []time.Duration }

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

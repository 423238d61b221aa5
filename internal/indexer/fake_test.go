package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"airdropScope/internal/model"
	"airdropScope/internal/retry"
)

// scriptedFetcher serves pages keyed by address and continuation token.
// failures queues errors returned before the page is served.
type scriptedFetcher struct {
	mu       sync.Mutex
	pages    map[string]map[string]model.EventPage
	failures map[string][]error
	requests []model.PageRequest
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		pages:    make(map[string]map[string]model.EventPage),
		failures: make(map[string][]error),
	}
}

func (f *scriptedFetcher) addPage(address model.Felt, token string, page model.EventPage) {
	byToken, ok := f.pages[address.String()]
	if !ok {
		byToken = make(map[string]model.EventPage)
		f.pages[address.String()] = byToken
	}
	byToken[token] = page
}

func (f *scriptedFetcher) failOn(address model.Felt, token string, errs ...error) {
	key := address.String() + "|" + token
	f.failures[key] = append(f.failures[key], errs...)
}

func (f *scriptedFetcher) FetchEventPage(_ context.Context, req model.PageRequest) (model.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	key := req.Address.String() + "|" + req.ContinuationToken
	if queue := f.failures[key]; len(queue) > 0 {
		f.failures[key] = queue[1:]
		return model.EventPage{}, queue[0]
	}

	page, ok := f.pages[req.Address.String()][req.ContinuationToken]
	if !ok {
		return model.EventPage{}, retry.Fatal(errors.New("unknown continuation token"))
	}
	return page, nil
}

func (f *scriptedFetcher) tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, req := range f.requests {
		out = append(out, req.ContinuationToken)
	}
	return out
}

type noSleep struct{ delays []time.Duration }

func (n *noSleep) Sleep(ctx context.Context, d time.Duration) error {
	n.delays = append(n.delays, d)
	return ctx.Err()
}

func event(keys []model.Felt, data ...uint64) model.RawEvent {
	words := make([]model.Felt, 0, len(data))
	for _, d := range data {
		words = append(words, model.FeltFromUint64(d))
	}
	return model.RawEvent{Topics: keys, DataWords: words}
}

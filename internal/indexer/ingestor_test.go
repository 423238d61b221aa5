package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airdropScope/internal/model"
	"airdropScope/internal/retry"
	"airdropScope/internal/storage"
)

var (
	panicSelector = model.MustParseFelt("0x1b86")
	sourceA       = model.EventSource{Name: "rUSDC", Address: model.MustParseFelt("0xa"), StartBlock: 10, EndBlock: 50}
	sourceB       = model.EventSource{Name: "rETH", Address: model.MustParseFelt("0xb"), StartBlock: 10, EndBlock: 50}
	guarded       = model.EventFilter{
		Name:         "panic",
		ExtractIndex: 1,
		Match:        &model.DataMatch{Index: 0, Value: panicSelector},
	}
)

func panicEvent(user uint64) model.RawEvent {
	return model.RawEvent{DataWords: []model.Felt{panicSelector, model.FeltFromUint64(user)}}
}

// twoSourceFetcher serves source A as two pages holding three matching
// events, one of them a duplicate, and source B as one page with nothing
// that passes the guard.
func twoSourceFetcher() *scriptedFetcher {
	f := newScriptedFetcher()
	f.addPage(sourceA.Address, "", model.EventPage{
		Events:            []model.RawEvent{panicEvent(0xaa), panicEvent(0xbb)},
		ContinuationToken: "a1",
	})
	f.addPage(sourceA.Address, "a1", model.EventPage{Events: []model.RawEvent{panicEvent(0xaa)}})
	f.addPage(sourceB.Address, "", model.EventPage{Events: []model.RawEvent{event(nil, 0x7, 0xcc)}})
	return f
}

func testSpecs() []SourceSpec {
	return []SourceSpec{
		{Source: sourceA, Filters: []model.EventFilter{guarded}},
		{Source: sourceB, Filters: []model.EventFilter{guarded}},
	}
}

func newTestIngestor(fetcher PageFetcher, store storage.KeyStore) *Ingestor {
	cfg := PagerConfig{PageSize: 100, Policy: retry.Policy{MaxAttempts: 3}, Sleeper: &noSleep{}}
	return NewIngestor(cfg, fetcher, store, nil, nil)
}

func TestIngestorTwoSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events_data.json")
	store := storage.NewFileKeyStore(path)

	report, err := newTestIngestor(twoSourceFetcher(), store).Run(context.Background(), testSpecs(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"0xaa", "0xbb"}, report.Added)
	assert.Equal(t, 2, report.Completed())
	assert.Equal(t, 0, report.Aborted())

	a, ok := report.Find("rUSDC", "panic")
	require.True(t, ok)
	assert.Equal(t, PairReport{Source: "rUSDC", Filter: "panic", Status: PairCompleted, Pages: 2, Events: 3, Matched: 3, Added: 2}, a)

	b, ok := report.Find("rETH", "panic")
	require.True(t, ok)
	assert.Equal(t, 1, b.Events)
	assert.Equal(t, 0, b.Matched)

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xbb"}, set.Keys())

	// Same data again adds nothing.
	again, err := newTestIngestor(twoSourceFetcher(), store).Run(context.Background(), testSpecs(), nil)
	require.NoError(t, err)
	assert.Empty(t, again.Added)

	set, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestIngestorKeepsPreviouslyKnownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`["0xBB","0x01"]`), 0o644))
	store := storage.NewFileKeyStore(path)

	report, err := newTestIngestor(twoSourceFetcher(), store).Run(context.Background(), testSpecs(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa"}, report.Added)

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0xbb", "0x1", "0xaa"}, set.Keys())
}

func TestIngestorAbortedPairDoesNotStopRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events_data.json")
	store := storage.NewFileKeyStore(path)
	fetcher := twoSourceFetcher()
	fetcher.failOn(sourceA.Address, "a1",
		retry.Transient(errors.New("timeout")),
		retry.Transient(errors.New("timeout")),
		retry.Transient(errors.New("timeout")),
	)
	fetcher.addPage(sourceB.Address, "", model.EventPage{Events: []model.RawEvent{panicEvent(0xcc)}})

	report, err := newTestIngestor(fetcher, store).Run(context.Background(), testSpecs(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Aborted())
	assert.Equal(t, 1, report.Completed())

	a, _ := report.Find("rUSDC", "panic")
	assert.Equal(t, PairAborted, a.Status)
	require.NotNil(t, a.Resume)
	assert.Equal(t, Position{FromBlock: 10, Token: "a1"}, *a.Resume)
	assert.Equal(t, 1, a.Pages)
	assert.NotEmpty(t, a.Error)

	// Keys from pages consumed before the abort are kept.
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, report.Added)

	// Resuming runs only the aborted pair, from the failed page.
	resumed, err := newTestIngestor(fetcher, store).Run(context.Background(), testSpecs(), &report)
	require.NoError(t, err)

	a, _ = resumed.Find("rUSDC", "panic")
	assert.Equal(t, PairCompleted, a.Status)
	assert.Equal(t, 1, a.Pages)
	b, _ := resumed.Find("rETH", "panic")
	assert.Equal(t, PairSkipped, b.Status)
	assert.Empty(t, resumed.Added)

	tokens := fetcher.tokens()
	assert.Equal(t, "a1", tokens[len(tokens)-1])
}

func TestIngestorCorruptStateAborts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644))
	fetcher := twoSourceFetcher()

	_, err := newTestIngestor(fetcher, storage.NewFileKeyStore(path)).Run(context.Background(), testSpecs(), nil)
	var corrupt *storage.CorruptStateError
	require.True(t, errors.As(err, &corrupt), "got %v", err)
	assert.Empty(t, fetcher.requests, "nothing is fetched when state is unreadable")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"not":"an array"}`, string(data), "corrupt state is left untouched")
}

func TestIngestorCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events_data.json")
	store := storage.NewFileKeyStore(path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestIngestor(twoSourceFetcher(), store).Run(ctx, testSpecs(), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Pairs, 2, "pairs the run never reached are still listed")
	for _, pair := range report.Pairs {
		assert.Equal(t, PairAborted, pair.Status)
		require.NotNil(t, pair.Resume)
		assert.Equal(t, Position{FromBlock: 10}, *pair.Resume)
	}
}

func TestIngestorResumeAfterCancellationRecoversEveryPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events_data.json")
	store := storage.NewFileKeyStore(path)
	fetcher := twoSourceFetcher()
	fetcher.addPage(sourceB.Address, "", model.EventPage{Events: []model.RawEvent{panicEvent(0xcc)}})

	// Cancel while the first pair is on its second page.
	ctx, cancel := context.WithCancel(context.Background())
	cancelling := &cancelOnToken{PageFetcher: fetcher, token: "a1", cancel: cancel}
	interrupted, err := newTestIngestor(cancelling, store).Run(ctx, testSpecs(), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, interrupted.Aborted())

	resumed, err := newTestIngestor(fetcher, store).Run(context.Background(), testSpecs(), &interrupted)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.Completed())
	assert.Equal(t, 0, resumed.Aborted())

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0xaa", "0xbb", "0xcc"}, set.Keys())
}

func TestIngestorResumeRunsPairsMissingFromReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events_data.json")
	store := storage.NewFileKeyStore(path)
	fetcher := twoSourceFetcher()
	fetcher.addPage(sourceB.Address, "", model.EventPage{Events: []model.RawEvent{panicEvent(0xcc)}})

	previous := Report{Pairs: []PairReport{{Source: "rUSDC", Filter: "panic", Status: PairCompleted}}}
	report, err := newTestIngestor(fetcher, store).Run(context.Background(), testSpecs(), &previous)
	require.NoError(t, err)

	a, _ := report.Find("rUSDC", "panic")
	assert.Equal(t, PairSkipped, a.Status)
	b, _ := report.Find("rETH", "panic")
	assert.Equal(t, PairCompleted, b.Status)
	assert.Equal(t, []string{"0xcc"}, report.Added)
}

func TestIngestorFlushFailureRestartsPair(t *testing.T) {
	store := &failingFlushStore{KeyStore: storage.NewFileKeyStore(filepath.Join(t.TempDir(), "k.json"))}

	report, err := newTestIngestor(twoSourceFetcher(), store).Run(context.Background(), testSpecs(), nil)
	require.Error(t, err)
	require.Len(t, report.Pairs, 2)
	for _, pair := range report.Pairs {
		assert.Equal(t, PairAborted, pair.Status)
		require.NotNil(t, pair.Resume)
		assert.Equal(t, Position{FromBlock: 10}, *pair.Resume)
	}
}

// cancelOnToken cancels the run when a page with token is requested.
type cancelOnToken struct {
	PageFetcher
	token  string
	cancel context.CancelFunc
}

func (c *cancelOnToken) FetchEventPage(ctx context.Context, req model.PageRequest) (model.EventPage, error) {
	if req.ContinuationToken == c.token {
		c.cancel()
		return model.EventPage{}, retry.Transient(ctx.Err())
	}
	return c.PageFetcher.FetchEventPage(ctx, req)
}

type failingFlushStore struct {
	storage.KeyStore
}

func (f *failingFlushStore) Flush(context.Context, *storage.KeySet) error {
	return errors.New("disk full")
}

func TestReportStoreRoundTrip(t *testing.T) {
	store := NewReportStore(filepath.Join(t.TempDir(), "nested", "report.json"))

	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)

	report := Report{
		StartedAt: "2024-01-01T00:00:00Z",
		Pairs: []PairReport{
			{Source: "a", Filter: "f", Status: PairAborted, Resume: &Position{FromBlock: 5, Token: "x"}, Error: "boom"},
		},
		Added: []string{"0x1"},
	}
	require.NoError(t, store.Save(report))

	loaded, found, err := store.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, report, loaded)
}

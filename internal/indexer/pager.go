package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"airdropScope/internal/metrics"
	"airdropScope/internal/model"
	"airdropScope/internal/retry"
)

// PageFetcher is the ledger's paginated event read.
type PageFetcher interface {
	FetchEventPage(ctx context.Context, req model.PageRequest) (model.EventPage, error)
}

// PagerConfig controls page size, optional block windows and retries.
type PagerConfig struct {
	PageSize int
	// BlockWindow splits the source range into windows of this many blocks.
	// Zero paginates the whole range in one query.
	BlockWindow uint64
	Policy      retry.Policy
	Sleeper     retry.Sleeper
}

// Pager walks one filter over one source, page by page. Each page's token
// is passed verbatim to the next request; no token moves to the next window
// or ends the sequence.
type Pager struct {
	fetcher PageFetcher
	source  model.EventSource
	filter  model.EventFilter
	cfg     PagerConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	windows []BlockRange
	window  int
	token   string
	pages   int
	done    bool
}

// NewPager starts at start, which is the source's first block for a fresh
// run or a saved resume position.
func NewPager(fetcher PageFetcher, source model.EventSource, filter model.EventFilter, start Position, cfg PagerConfig, logger *zap.Logger, m *metrics.Metrics) (*Pager, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is nil")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be greater than zero")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	from := start.FromBlock
	if from < source.StartBlock {
		from = source.StartBlock
	}
	var windows []BlockRange
	switch {
	case source.EndBlock < from:
		return nil, fmt.Errorf("source %s: start block %d is past end block %d", source.Name, from, source.EndBlock)
	case cfg.BlockWindow == 0:
		windows = []BlockRange{{From: from, To: source.EndBlock}}
	default:
		var err error
		windows, err = SplitRange(from, source.EndBlock, cfg.BlockWindow)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", source.Name, err)
		}
	}

	return &Pager{
		fetcher: fetcher,
		source:  source,
		filter:  filter,
		cfg:     cfg,
		logger:  logger.With(zap.String("source", source.Name), zap.String("filter", filter.Name)),
		metrics: m,
		windows: windows,
		token:   start.Token,
	}, nil
}

// Position is where the next page will be requested from.
func (p *Pager) Position() Position {
	if p.done {
		last := p.windows[len(p.windows)-1]
		return Position{FromBlock: last.To + 1}
	}
	return Position{FromBlock: p.windows[p.window].From, Token: p.token}
}

// Pages is the number of pages consumed so far.
func (p *Pager) Pages() int {
	return p.pages
}

// Next fetches the next page. ok is false once the range is exhausted.
func (p *Pager) Next(ctx context.Context) (page model.EventPage, ok bool, err error) {
	if p.done {
		return model.EventPage{}, false, nil
	}

	if err := ctx.Err(); err != nil {
		return model.EventPage{}, false, &IngestionAbortedError{
			Source: p.source.Name,
			Filter: p.filter.Name,
			Resume: p.Position(),
			Pages:  p.pages,
			Err:    err,
		}
	}

	current := p.windows[p.window]
	req := model.PageRequest{
		Address:           p.source.Address,
		Keys:              p.filter.Keys,
		FromBlock:         current.From,
		ToBlock:           current.To,
		PageSize:          p.cfg.PageSize,
		ContinuationToken: p.token,
	}

	attempts, err := retry.Do(ctx, p.cfg.Policy, p.cfg.Sleeper, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			p.metrics.PageRetried(p.source.Name, p.filter.Name)
		}
		var fetchErr error
		page, fetchErr = p.fetcher.FetchEventPage(ctx, req)
		if fetchErr != nil {
			p.logger.Warn("fetch page failed",
				zap.Error(fetchErr),
				zap.Int("attempt", attempt),
				zap.Bool("transient", retry.IsTransient(fetchErr)),
				zap.Uint64("from", current.From),
				zap.Uint64("to", current.To),
				zap.String("token", p.token),
			)
		}
		return fetchErr
	})
	if err == nil && page.HasMore() && page.ContinuationToken == p.token {
		err = retry.Fatal(fmt.Errorf("continuation token %q did not advance", p.token))
	}
	if err != nil {
		return model.EventPage{}, false, &IngestionAbortedError{
			Source:   p.source.Name,
			Filter:   p.filter.Name,
			Resume:   p.Position(),
			Pages:    p.pages,
			Attempts: attempts,
			Err:      err,
		}
	}

	p.pages++
	p.metrics.PageFetched(p.source.Name, p.filter.Name)
	p.logger.Debug("page fetched",
		zap.Int("events", len(page.Events)),
		zap.String("next_token", page.ContinuationToken),
		zap.Uint64("from", current.From),
		zap.Uint64("to", current.To),
	)

	if page.HasMore() {
		p.token = page.ContinuationToken
	} else {
		p.token = ""
		p.window++
		if p.window >= len(p.windows) {
			p.done = true
		}
	}
	return page, true, nil
}

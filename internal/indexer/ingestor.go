package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"airdropScope/internal/metrics"
	"airdropScope/internal/model"
	"airdropScope/internal/storage"
)

// SourceSpec is a source and the filters scanned over it, in order.
type SourceSpec struct {
	Source  model.EventSource
	Filters []model.EventFilter
}

// Ingestor drains every (source, filter) pair into the known key set.
type Ingestor struct {
	cfg     PagerConfig
	fetcher PageFetcher
	store   storage.KeyStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewIngestor builds an Ingestor with its dependencies.
func NewIngestor(cfg PagerConfig, fetcher PageFetcher, store storage.KeyStore, logger *zap.Logger, m *metrics.Metrics) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Run ingests sources in order. A pair that aborts is recorded in the
// report and the run moves on. When resume is non-nil the pairs it lists
// as completed or skipped are skipped; aborted pairs run from their saved
// position. When the run stops early every pair it did not reach is
// reported as aborted at its start, so the report always lists every pair.
//
// The returned error is reserved for run-level failures: unreadable key
// state, a failed flush, or cancellation. The report is valid either way.
func (in *Ingestor) Run(ctx context.Context, sources []SourceSpec, resume *Report) (Report, error) {
	report := Report{
		StartedAt: in.timestamp(),
		Pairs:     make([]PairReport, 0),
		Added:     make([]string, 0),
	}
	if in.fetcher == nil {
		return report, fmt.Errorf("page fetcher is nil")
	}
	if in.store == nil {
		return report, fmt.Errorf("key store is nil")
	}

	set, err := in.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load known keys: %w", err)
	}
	in.logger.Info("known keys loaded", zap.Int("keys", set.Len()))

	plans := in.planPairs(sources, resume)
	for i, plan := range plans {
		if plan.skip {
			report.Pairs = append(report.Pairs, PairReport{Source: plan.source.Name, Filter: plan.filter.Name, Status: PairSkipped})
			continue
		}

		pair, runErr := in.ingestPair(ctx, plan.source, plan.filter, plan.start, set, &report)

		// Commit before moving on so an interruption loses at most this pair's pages.
		if err := in.store.Flush(context.WithoutCancel(ctx), set); err != nil {
			// Nothing from this pair is durable, so it restarts from where it began.
			start := plan.start
			pair.Status = PairAborted
			pair.Resume = &start
			pair.Error = fmt.Sprintf("flush known keys: %v", err)
			report.Pairs = append(report.Pairs, pair)
			in.notStarted(&report, plans[i+1:], "flush failed before this pair started")
			report.FinishedAt = in.timestamp()
			return report, fmt.Errorf("flush known keys: %w", err)
		}
		set.MarkFlushed()

		report.Pairs = append(report.Pairs, pair)
		in.metrics.PairFinished(string(pair.Status))
		if runErr != nil {
			in.notStarted(&report, plans[i+1:], "run interrupted before this pair started")
			report.FinishedAt = in.timestamp()
			return report, runErr
		}
	}

	report.FinishedAt = in.timestamp()
	in.logger.Info("ingestion complete",
		zap.Int("pairs_completed", report.Completed()),
		zap.Int("pairs_aborted", report.Aborted()),
		zap.Int("keys_added", len(report.Added)),
		zap.Int("keys_total", set.Len()),
	)
	return report, nil
}

type pairPlan struct {
	source model.EventSource
	filter model.EventFilter
	start  Position
	skip   bool
}

// planPairs lists every (source, filter) pair in run order. On resume a pair
// is skipped only when the previous report shows it completed or skipped;
// aborted pairs continue from their saved position and pairs missing from
// the report start over.
func (in *Ingestor) planPairs(sources []SourceSpec, resume *Report) []pairPlan {
	plans := make([]pairPlan, 0, len(sources))
	for _, spec := range sources {
		for _, filter := range spec.Filters {
			plan := pairPlan{source: spec.Source, filter: filter, start: Position{FromBlock: spec.Source.StartBlock}}
			if resume != nil {
				prev, found := resume.Find(spec.Source.Name, filter.Name)
				switch {
				case found && (prev.Status == PairCompleted || prev.Status == PairSkipped):
					plan.skip = true
				case found && prev.Resume != nil:
					plan.start = *prev.Resume
					in.logger.Info("resume pair",
						zap.String("source", spec.Source.Name),
						zap.String("filter", filter.Name),
						zap.Uint64("from", plan.start.FromBlock),
						zap.String("token", plan.start.Token),
					)
				default:
					in.logger.Info("pair missing from previous report, starting over",
						zap.String("source", spec.Source.Name),
						zap.String("filter", filter.Name),
					)
				}
			}
			plans = append(plans, plan)
		}
	}
	return plans
}

// notStarted records pairs a run never reached as aborted at their start
// position so a resume picks them up.
func (in *Ingestor) notStarted(report *Report, plans []pairPlan, reason string) {
	for _, plan := range plans {
		if plan.skip {
			report.Pairs = append(report.Pairs, PairReport{Source: plan.source.Name, Filter: plan.filter.Name, Status: PairSkipped})
			continue
		}
		start := plan.start
		report.Pairs = append(report.Pairs, PairReport{
			Source: plan.source.Name,
			Filter: plan.filter.Name,
			Status: PairAborted,
			Resume: &start,
			Error:  reason,
		})
	}
}

// ingestPair drains one pager. Only cancellation is returned as an error;
// aborts are folded into the pair report.
func (in *Ingestor) ingestPair(ctx context.Context, source model.EventSource, filter model.EventFilter, start Position, set *storage.KeySet, report *Report) (PairReport, error) {
	pair := PairReport{Source: source.Name, Filter: filter.Name, Status: PairCompleted}
	logger := in.logger.With(zap.String("source", source.Name), zap.String("filter", filter.Name))

	pager, err := NewPager(in.fetcher, source, filter, start, in.cfg, in.logger, in.metrics)
	if err != nil {
		pair.Status = PairAborted
		pair.Resume = &start
		pair.Error = err.Error()
		logger.Error("pager setup failed", zap.Error(err))
		return pair, nil
	}

	for {
		page, ok, err := pager.Next(ctx)
		if err != nil {
			pair.Status = PairAborted
			pair.Error = err.Error()
			var aborted *IngestionAbortedError
			if errors.As(err, &aborted) {
				resume := aborted.Resume
				pair.Resume = &resume
			}
			if ctx.Err() != nil {
				logger.Warn("ingestion interrupted", zap.Int("pages", pair.Pages))
				return pair, ctx.Err()
			}
			logger.Error("pair aborted", zap.Error(err), zap.Int("pages", pair.Pages))
			return pair, nil
		}
		if !ok {
			break
		}

		pair.Pages++
		added := 0
		for _, event := range page.Events {
			pair.Events++
			key, matched := ExtractKey(event, filter)
			if !matched {
				continue
			}
			pair.Matched++
			if set.Insert(key) {
				added++
				report.Added = append(report.Added, key)
				logger.Debug("new key", zap.String("key", key), zap.Uint64("block_number", event.BlockNumber))
			} else {
				logger.Debug("duplicate key skipped", zap.String("key", key))
			}
		}
		pair.Added += added
		in.metrics.KeysAdded(source.Name, filter.Name, added)
	}

	logger.Info("pair complete",
		zap.Int("pages", pair.Pages),
		zap.Int("events", pair.Events),
		zap.Int("matched", pair.Matched),
		zap.Int("added", pair.Added),
	)
	return pair, nil
}

func (in *Ingestor) timestamp() string {
	return in.now().UTC().Format(time.RFC3339Nano)
}

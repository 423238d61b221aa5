package airdrop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"airdropScope/internal/model"
	"airdropScope/internal/retry"
)

// UnitRunner runs one batch to a terminal outcome. *Retrier implements it.
type UnitRunner interface {
	Submit(ctx context.Context, batch model.Batch) (model.SubmissionOutcome, error)
}

// Summary is the result of a distribution run.
type Summary struct {
	Total          int    `json:"total"`
	Confirmed      int    `json:"confirmed"`
	Failed         int    `json:"failed"`
	FailedIndices  []int  `json:"failed_indices"`
	LedgerLocation string `json:"ledger_location"`
	// Processed counts units that reached a terminal state. It is below
	// Total only when the run stopped early.
	Processed int `json:"processed"`
}

// DistributorConfig sets the pacing between units.
type DistributorConfig struct {
	InterUnitDelay time.Duration
	ErrorDelay     time.Duration
	LedgerLocation string
	Sleeper        retry.Sleeper
}

// Distributor submits batches strictly in order, one at a time.
type Distributor struct {
	runner UnitRunner
	cfg    DistributorConfig
	logger *zap.Logger
}

func NewDistributor(runner UnitRunner, cfg DistributorConfig, logger *zap.Logger) *Distributor {
	if cfg.Sleeper == nil {
		cfg.Sleeper = retry.TimerSleeper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distributor{runner: runner, cfg: cfg, logger: logger}
}

// Run submits every batch in order. A failed unit never stops the run. The
// error is non-nil when the ledger could not be written or ctx was
// cancelled; the summary covers the units processed up to that point.
func (d *Distributor) Run(ctx context.Context, batches []model.Batch) (Summary, error) {
	summary := Summary{
		Total:          len(batches),
		FailedIndices:  make([]int, 0),
		LedgerLocation: d.cfg.LedgerLocation,
	}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("distribution interrupted", zap.Int("next_batch", batch.Index))
			return summary, err
		}

		outcome, err := d.runner.Submit(ctx, batch)
		if err != nil {
			return summary, err
		}
		summary.Processed++

		last := i == len(batches)-1
		var delay time.Duration
		if outcome.Failed() {
			summary.Failed++
			summary.FailedIndices = append(summary.FailedIndices, batch.Index)
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			delay = d.cfg.ErrorDelay
		} else {
			summary.Confirmed++
			delay = d.cfg.InterUnitDelay
		}

		d.logger.Info("unit finished",
			zap.Int("batch", batch.Index),
			zap.String("status", string(outcome.Status)),
			zap.Int("processed", summary.Processed),
			zap.Int("total", summary.Total),
		)

		if last || delay <= 0 {
			continue
		}
		if err := d.cfg.Sleeper.Sleep(ctx, delay); err != nil {
			return summary, err
		}
	}

	d.logger.Info("distribution complete",
		zap.Int("total", summary.Total),
		zap.Int("confirmed", summary.Confirmed),
		zap.Int("failed", summary.Failed),
		zap.Ints("failed_indices", summary.FailedIndices),
		zap.String("ledger", summary.LedgerLocation),
	)
	return summary, nil
}

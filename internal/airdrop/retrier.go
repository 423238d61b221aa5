package airdrop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"airdropScope/internal/metrics"
	"airdropScope/internal/model"
	"airdropScope/internal/retry"
	"airdropScope/internal/storage"
)

// Submitter sends one state-changing call to the ledger.
type Submitter interface {
	Submit(ctx context.Context, call model.Call) (model.TxHandle, error)
}

// FinalityWaiter blocks until a submitted call is final. A timeout is
// reported as a transient error.
type FinalityWaiter interface {
	WaitForFinality(ctx context.Context, handle model.TxHandle) error
}

// ErrorKindInterrupted marks a unit cut short by cancellation.
const ErrorKindInterrupted = "interrupted"

type unitState string

const (
	statePending   unitState = "pending"
	stateSubmitted unitState = "submitted"
	stateConfirmed unitState = "confirmed"
	stateFailed    unitState = "failed"
)

// RetrierConfig wires a Retrier.
type RetrierConfig struct {
	Submitter Submitter
	Waiter    FinalityWaiter
	Builder   CallBuilder
	Ledger    storage.FailureLedger
	Policy    retry.Policy
	Sleeper   retry.Sleeper
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Retrier drives one unit at a time through submit and finality, retrying
// transient failures on the same unit and ledgering units that end failed.
type Retrier struct {
	submitter Submitter
	waiter    FinalityWaiter
	builder   CallBuilder
	ledger    storage.FailureLedger
	policy    retry.Policy
	sleeper   retry.Sleeper
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewRetrier(cfg RetrierConfig) (*Retrier, error) {
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("submitter is nil")
	}
	if cfg.Waiter == nil {
		return nil, fmt.Errorf("finality waiter is nil")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("call builder is nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("failure ledger is nil")
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = retry.TimerSleeper{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Retrier{
		submitter: cfg.Submitter,
		waiter:    cfg.Waiter,
		builder:   cfg.Builder,
		ledger:    cfg.Ledger,
		policy:    cfg.Policy,
		sleeper:   cfg.Sleeper,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}, nil
}

// Submit runs batch to a terminal state. A failed outcome has already been
// appended to the ledger when Submit returns. The error is non-nil only
// when that append failed, which must stop the run.
func (r *Retrier) Submit(ctx context.Context, batch model.Batch) (model.SubmissionOutcome, error) {
	started := r.now()
	outcome := model.SubmissionOutcome{Batch: batch}
	logger := r.logger.With(zap.Int("batch", batch.Index), zap.Int("allocations", len(batch.Allocations)))

	call, err := r.builder.Build(batch)
	if err != nil {
		outcome.Status = model.StatusFailed
		outcome.Err = err
		outcome.ErrorKind = retry.KindFatal.String()
		logger.Error("unit failed", zap.String("state", string(stateFailed)), zap.Error(err))
		return r.finish(ctx, outcome, started)
	}
	outcome.Call = call

	attempts, err := retry.Do(ctx, r.policy, r.sleeper, func(ctx context.Context, attempt int) error {
		state := statePending
		outcome.TxHandle = ""
		handle, err := r.submitter.Submit(ctx, call)
		if err == nil {
			state = stateSubmitted
			outcome.TxHandle = handle
			outcome.TxHandles = append(outcome.TxHandles, handle)
			logger.Info("unit submitted", zap.String("tx", string(handle)), zap.Int("attempt", attempt))
			err = r.waiter.WaitForFinality(ctx, handle)
		}
		if err != nil {
			err = classify(err)
			logger.Warn("attempt failed",
				zap.String("state", string(state)),
				zap.Int("attempt", attempt),
				zap.Bool("transient", retry.IsTransient(err)),
				zap.Error(err),
			)
		}
		return err
	})
	outcome.Attempts = attempts

	if err == nil {
		outcome.Status = model.StatusSuccess
		logger.Info("unit confirmed",
			zap.String("state", string(stateConfirmed)),
			zap.String("tx", string(outcome.TxHandle)),
			zap.Int("attempts", attempts),
		)
		return r.finish(ctx, outcome, started)
	}

	outcome.Status = model.StatusFailed
	outcome.Err = err
	outcome.ErrorKind = retry.KindOf(err).String()
	if ctx.Err() != nil {
		outcome.ErrorKind = ErrorKindInterrupted
	}
	logger.Error("unit failed",
		zap.String("state", string(stateFailed)),
		zap.String("error_kind", outcome.ErrorKind),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return r.finish(ctx, outcome, started)
}

func (r *Retrier) finish(ctx context.Context, outcome model.SubmissionOutcome, started time.Time) (model.SubmissionOutcome, error) {
	r.metrics.UnitFinished(string(outcome.Status), outcome.Attempts, r.now().Sub(started))
	if !outcome.Failed() {
		return outcome, nil
	}
	// The record must land even when the run is being cancelled.
	entry := model.NewFailureEntry(outcome, r.now())
	if err := r.ledger.Append(context.WithoutCancel(ctx), entry); err != nil {
		return outcome, fmt.Errorf("append batch %d to failure ledger: %w", outcome.Batch.Index, err)
	}
	return outcome, nil
}

// classify treats unmarked errors from capabilities by their message.
// Cancellation stays fatal so it is never retried.
func classify(err error) error {
	if retry.IsClassified(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return retry.Fatal(err)
	}
	if retry.IsRecoverable(err) {
		return retry.Transient(err)
	}
	return retry.Fatal(err)
}

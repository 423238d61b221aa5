package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airdropScope/internal/airdrop"
	"airdropScope/internal/chain"
	"airdropScope/internal/config"
	"airdropScope/internal/metrics"
	"airdropScope/internal/model"
	"airdropScope/internal/retry"
	"airdropScope/internal/storage"
	"airdropScope/internal/storage/postgres"
)

func runDistribute(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDistribute(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input file is required")
	}
	template, err := airdrop.NewCallTemplate(cfg.Target, cfg.Method, cfg.Args)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	allocations, err := airdrop.LoadAllocations(data, airdrop.LoadOptions{
		RecipientField: cfg.RecipientField,
		AmountField:    cfg.AmountField,
		FixedAmount:    cfg.FixedAmount,
		Decimals:       cfg.Decimals,
	})
	if err != nil {
		return err
	}

	batchSize := cfg.MaxBatchSize
	if template.SingleRecipient() {
		batchSize = 1
	}
	batches, err := airdrop.Plan(allocations, batchSize)
	if err != nil {
		return err
	}

	logger.Info("distribution planned",
		zap.String("input", cfg.Input),
		zap.Int("allocations", len(allocations)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", batchSize),
		zap.String("target", cfg.Target),
		zap.String("method", cfg.Method),
	)

	return submitBatches(cfg, batches, template, logger)
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDistribute(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	from, _ := cmd.Flags().GetString("from")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if from == "" {
		return fmt.Errorf("--from is required")
	}

	var entries []model.FailureEntry
	switch cfg.Ledger {
	case "", "file":
		if sameFile(from, cfg.FailureLedger) {
			return fmt.Errorf("replay must write to a different failure ledger than %s", from)
		}
		var skipped int
		entries, skipped, err = storage.ReadFailures(from)
		if err != nil {
			return err
		}
		if skipped > 0 {
			logger.Warn("skipped undecodable ledger lines",
				zap.String("from", from),
				zap.Int("lines", skipped),
			)
		}
	case "postgres":
		if from == cfg.Namespace {
			return fmt.Errorf("replay must write to a different namespace than %s", from)
		}
		source, err := postgres.NewStore(context.Background(), cfg.PGDSN, from)
		if err != nil {
			return fmt.Errorf("open postgres ledger: %w", err)
		}
		entries, err = source.Failures(context.Background())
		source.Close()
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown ledger %q", cfg.Ledger)
	}

	// The template only serves entries that never got a call recorded.
	var fallback airdrop.CallBuilder
	if cfg.Target != "" {
		template, err := airdrop.NewCallTemplate(cfg.Target, cfg.Method, cfg.Args)
		if err != nil {
			return err
		}
		fallback = template
	}
	batches, builder := airdrop.ReplayPlan(entries, fallback)

	logger.Info("replay planned",
		zap.String("from", from),
		zap.Int("entries", len(entries)),
		zap.Int("batches", len(batches)),
	)
	if len(batches) == 0 {
		return nil
	}

	return submitBatches(cfg, batches, builder, logger)
}

func submitBatches(cfg config.DistributeConfig, batches []model.Batch, builder airdrop.CallBuilder, logger *zap.Logger) error {
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, closeLedger, err := openFailureLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	chainClient, err := chain.NewClient(ctx, chain.Config{
		RPCURL:          cfg.RPCURL,
		RelayURL:        cfg.RelayURL,
		RelayMethod:     cfg.RelayMethod,
		PollInterval:    cfg.PollInterval,
		FinalityTimeout: cfg.FinalityTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	m := startMetrics(ctx, cfg.MetricsAddr, logger)
	distributor, err := newDistributor(cfg, chainClient, builder, ledger, logger, m)
	if err != nil {
		return err
	}

	summary, err := distributor.Run(ctx, batches)
	logger.Info("distribution summary",
		zap.Int("total", summary.Total),
		zap.Int("processed", summary.Processed),
		zap.Int("confirmed", summary.Confirmed),
		zap.Int("failed", summary.Failed),
		zap.Ints("failed_indices", summary.FailedIndices),
		zap.String("ledger", summary.LedgerLocation),
	)
	return err
}

func newDistributor(cfg config.DistributeConfig, client *chain.Client, builder airdrop.CallBuilder, ledger storage.FailureLedger, logger *zap.Logger, m *metrics.Metrics) (*airdrop.Distributor, error) {
	retrier, err := airdrop.NewRetrier(airdrop.RetrierConfig{
		Submitter: client,
		Waiter:    client,
		Builder:   builder,
		Ledger:    ledger,
		Policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.ErrorDelay,
			Multiplier:  cfg.BackoffMultiplier,
		},
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}
	return airdrop.NewDistributor(retrier, airdrop.DistributorConfig{
		InterUnitDelay: cfg.InterUnitDelay,
		ErrorDelay:     cfg.ErrorDelay,
		LedgerLocation: ledger.Location(),
	}, logger), nil
}

func openFailureLedger(ctx context.Context, cfg config.DistributeConfig) (storage.FailureLedger, func(), error) {
	switch cfg.Ledger {
	case "", "file":
		if cfg.FailureLedger == "" {
			return nil, nil, fmt.Errorf("failure-ledger is required")
		}
		return storage.NewJSONLFailureLedger(cfg.FailureLedger), func() {}, nil
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger %q", cfg.Ledger)
	}
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

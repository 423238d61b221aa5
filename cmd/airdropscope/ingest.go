package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airdropScope/internal/chain"
	"airdropScope/internal/config"
	"airdropScope/internal/indexer"
	"airdropScope/internal/retry"
	"airdropScope/internal/storage"
	"airdropScope/internal/storage/postgres"
	redisstore "airdropScope/internal/storage/redis"
)

func runIngest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	specs, err := indexer.BuildSourceSpecs(cfg.Sources)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	reports := indexer.NewReportStore(cfg.Report)
	var resume *indexer.Report
	if cfg.Resume {
		prev, found, err := reports.Load()
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no report to resume at %s", reports.Path())
		}
		resume = &prev
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openKeyStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	chainClient, err := chain.NewClient(ctx, chain.Config{RPCURL: cfg.RPCURL}, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	m := startMetrics(ctx, cfg.MetricsAddr, logger)

	ingestor := indexer.NewIngestor(indexer.PagerConfig{
		PageSize:    cfg.PageSize,
		BlockWindow: cfg.BlockWindow,
		Policy: retry.Policy{
			MaxAttempts: cfg.FetchMaxAttempts,
			BaseDelay:   cfg.RetryBackoff,
			MaxDelay:    cfg.MaxBackoff,
			Multiplier:  2,
		},
	}, chainClient, store, logger, m)

	logger.Info("ingest start",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("sources", len(specs)),
		zap.String("store", cfg.Store.Kind),
		zap.Int("page_size", cfg.PageSize),
		zap.Uint64("block_window", cfg.BlockWindow),
		zap.Bool("resume", resume != nil),
		zap.String("report", reports.Path()),
	)

	report, runErr := ingestor.Run(ctx, specs, resume)
	if err := reports.Save(report); err != nil {
		logger.Error("save report failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return runErr
	}
	if report.Aborted() > 0 {
		logger.Warn("some pairs aborted, re-run with --resume to continue them",
			zap.Int("pairs_aborted", report.Aborted()),
		)
	}
	return nil
}

// openKeyStore opens the configured store. File stores are guarded by a
// lock file for the lifetime of the run.
func openKeyStore(ctx context.Context, cfg config.StoreConfig) (storage.KeyStore, func(), error) {
	switch cfg.Kind {
	case "", "file":
		if cfg.Path == "" {
			return nil, nil, fmt.Errorf("store-path is required")
		}
		lock, err := storage.AcquireLock(cfg.Path)
		if err != nil {
			if errors.Is(err, storage.ErrLocked) {
				return nil, nil, fmt.Errorf("another run is using %s: %w", cfg.Path, err)
			}
			return nil, nil, err
		}
		return storage.NewFileKeyStore(cfg.Path), func() { lock.Release() }, nil
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	case "redis":
		store, err := redisstore.NewKeyStore(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Kind)
	}
}

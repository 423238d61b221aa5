package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"airdropScope/internal/metrics"
)

func main() {
	root := &cobra.Command{
		Use:          "airdropscope",
		Short:        "Starknet event ingestion and batched airdrop distribution",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Collect deduplicated keys from contract events",
		RunE:  runIngest,
	}

	ingestCmd.Flags().String("rpc", "", "Starknet RPC URL")
	ingestCmd.Flags().String("store", "file", "key store (file, postgres, redis)")
	ingestCmd.Flags().String("store-path", "./data/events_data.json", "key store file path")
	ingestCmd.Flags().String("pg-dsn", "", "Postgres DSN for the postgres store")
	ingestCmd.Flags().String("redis-addr", "", "Redis address for the redis store")
	ingestCmd.Flags().String("redis-password", "", "Redis password")
	ingestCmd.Flags().Int("redis-db", 0, "Redis database")
	ingestCmd.Flags().String("redis-key", "airdropscope:known_keys", "Redis set holding known keys")
	ingestCmd.Flags().String("namespace", "default", "key namespace for shared stores")
	ingestCmd.Flags().Int("page-size", 100, "events per page")
	ingestCmd.Flags().Int("fetch-max-attempts", 5, "attempts per page before the pair is aborted")
	ingestCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial page retry backoff")
	ingestCmd.Flags().Duration("max-backoff", 30*time.Second, "page retry backoff cap")
	ingestCmd.Flags().Uint64("block-window", 0, "blocks per query window, 0 scans each range in one query")
	ingestCmd.Flags().String("report", "./data/ingest_report.json", "ingestion report path")
	ingestCmd.Flags().Bool("resume", false, "re-run only the aborted pairs of the saved report")
	ingestCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	ingestCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(ingestCmd)

	distributeCmd := &cobra.Command{
		Use:   "distribute",
		Short: "Submit allocations in batches and ledger failed batches",
		RunE:  runDistribute,
	}

	addSubmissionFlags(distributeCmd)
	distributeCmd.Flags().String("input", "", "allocation JSON file")
	distributeCmd.Flags().String("recipient-field", "Address", "recipient field of allocation objects")
	distributeCmd.Flags().String("amount-field", "HSTK Allocation", "amount field of allocation objects")
	distributeCmd.Flags().String("fixed-amount", "", "amount for rows that are plain addresses")
	distributeCmd.Flags().Int("decimals", 18, "token decimals")
	distributeCmd.Flags().Int("max-batch-size", 200, "allocations per call")
	distributeCmd.Flags().Duration("inter-unit-delay", 5*time.Second, "pause after each confirmed batch")

	root.AddCommand(distributeCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Resubmit the batches recorded in a failure ledger",
		RunE:  runReplay,
	}

	addSubmissionFlags(replayCmd)
	replayCmd.Flags().String("from", "", "failure ledger to replay (file path, or namespace for the postgres ledger)")
	replayCmd.Flags().Duration("inter-unit-delay", 5*time.Second, "pause after each confirmed batch")

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSubmissionFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Starknet RPC URL")
	cmd.Flags().String("relay-url", "", "signing relayer URL, defaults to the RPC URL")
	cmd.Flags().String("relay-method", "relay_submitCall", "relayer JSON-RPC method")
	cmd.Flags().String("target", "", "contract receiving the calls")
	cmd.Flags().String("method", "batch_create", "entry point name")
	cmd.Flags().StringSlice("args", nil, "calldata template, e.g. $recipients,0,1,$amounts,50,1")
	cmd.Flags().Duration("error-delay", 30*time.Second, "pause after a failed attempt or batch")
	cmd.Flags().Float64("backoff-multiplier", 1.0, "growth of the error delay per attempt")
	cmd.Flags().Int("max-attempts", 3, "attempts per batch before it is ledgered")
	cmd.Flags().Duration("finality-timeout", 5*time.Minute, "wait for finality before retrying")
	cmd.Flags().Duration("poll-interval", 2*time.Second, "transaction status poll interval")
	cmd.Flags().String("ledger", "file", "failure ledger (file, postgres)")
	cmd.Flags().String("failure-ledger", "./data/failed_batches.jsonl", "failure ledger file path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the postgres ledger")
	cmd.Flags().String("namespace", "default", "ledger namespace for the postgres ledger")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// startMetrics registers collectors and serves them when addr is set.
// Collectors are always created so the run code needs no nil checks.
func startMetrics(ctx context.Context, addr string, logger *zap.Logger) *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if addr != "" {
		metrics.Serve(ctx, addr, reg, logger)
	}
	return m
}

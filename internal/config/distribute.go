package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DistributeConfig holds configuration for the distribute and replay commands.
type DistributeConfig struct {
	RPCURL            string
	RelayURL          string
	RelayMethod       string
	LogLevel          string
	MetricsAddr       string
	Input             string
	RecipientField    string
	AmountField       string
	FixedAmount       string
	Decimals          int
	Target            string
	Method            string
	Args              []string
	MaxBatchSize      int
	InterUnitDelay    time.Duration
	ErrorDelay        time.Duration
	BackoffMultiplier float64
	MaxAttempts       int
	FinalityTimeout   time.Duration
	PollInterval      time.Duration
	Ledger            string
	FailureLedger     string
	PGDSN             string
	Namespace         string
}

// LoadDistribute merges config file, environment variables, and flags into DistributeConfig.
func LoadDistribute(cfgFile string, flags *pflag.FlagSet) (DistributeConfig, error) {
	v := viper.New()
	setCommonDefaults(v)
	v.SetDefault("relay-method", "relay_submitCall")
	v.SetDefault("recipient-field", "Address")
	v.SetDefault("amount-field", "HSTK Allocation")
	v.SetDefault("decimals", 18)
	v.SetDefault("method", "batch_create")
	v.SetDefault("args", []string{"$recipients", "0", "1", "$amounts", "50", "1"})
	v.SetDefault("max-batch-size", 200)
	v.SetDefault("inter-unit-delay", 5*time.Second)
	v.SetDefault("error-delay", 30*time.Second)
	v.SetDefault("backoff-multiplier", 1.0)
	v.SetDefault("max-attempts", 3)
	v.SetDefault("finality-timeout", 5*time.Minute)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("ledger", "file")
	v.SetDefault("failure-ledger", "./data/failed_batches.jsonl")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return DistributeConfig{}, err
	}

	cfg := DistributeConfig{
		RPCURL:            v.GetString("rpc"),
		RelayURL:          v.GetString("relay-url"),
		RelayMethod:       v.GetString("relay-method"),
		LogLevel:          v.GetString("log-level"),
		MetricsAddr:       v.GetString("metrics-addr"),
		Input:             v.GetString("input"),
		RecipientField:    v.GetString("recipient-field"),
		AmountField:       v.GetString("amount-field"),
		FixedAmount:       v.GetString("fixed-amount"),
		Decimals:          v.GetInt("decimals"),
		Target:            v.GetString("target"),
		Method:            v.GetString("method"),
		Args:              getStringSlice(v, "args"),
		MaxBatchSize:      v.GetInt("max-batch-size"),
		InterUnitDelay:    v.GetDuration("inter-unit-delay"),
		ErrorDelay:        v.GetDuration("error-delay"),
		BackoffMultiplier: v.GetFloat64("backoff-multiplier"),
		MaxAttempts:       v.GetInt("max-attempts"),
		FinalityTimeout:   v.GetDuration("finality-timeout"),
		PollInterval:      v.GetDuration("poll-interval"),
		Ledger:            v.GetString("ledger"),
		FailureLedger:     v.GetString("failure-ledger"),
		PGDSN:             v.GetString("pg-dsn"),
		Namespace:         v.GetString("namespace"),
	}

	return cfg, nil
}

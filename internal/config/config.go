package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StoreConfig selects where known keys live.
type StoreConfig struct {
	Kind          string
	Path          string
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	Namespace     string
}

// MatchConfig is an optional data-word guard on a filter.
type MatchConfig struct {
	Index int    `mapstructure:"index"`
	Value string `mapstructure:"value"`
}

// FilterConfig describes one event filter of a source.
type FilterConfig struct {
	Name          string       `mapstructure:"name"`
	SignatureName string       `mapstructure:"signature-name"`
	SignatureHash string       `mapstructure:"signature-hash"`
	TopicValues   []string     `mapstructure:"topic-values"`
	ExtractIndex  int          `mapstructure:"extract-index"`
	Match         *MatchConfig `mapstructure:"match"`
}

// SourceConfig describes one contract to scan.
type SourceConfig struct {
	Name       string         `mapstructure:"name"`
	Address    string         `mapstructure:"address"`
	StartBlock uint64         `mapstructure:"start-block"`
	EndBlock   uint64         `mapstructure:"end-block"`
	Filters    []FilterConfig `mapstructure:"filters"`
}

// Config holds configuration for the ingest command.
type Config struct {
	RPCURL           string
	LogLevel         string
	MetricsAddr      string
	Store            StoreConfig
	PageSize         int
	FetchMaxAttempts int
	RetryBackoff     time.Duration
	MaxBackoff       time.Duration
	BlockWindow      uint64
	Report           string
	Resume           bool
	Sources          []SourceConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setCommonDefaults(v)
	v.SetDefault("page-size", 100)
	v.SetDefault("fetch-max-attempts", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("max-backoff", 30*time.Second)
	v.SetDefault("block-window", uint64(0))
	v.SetDefault("report", "./data/ingest_report.json")
	v.SetDefault("resume", false)

	if err := readConfig(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	var sources []SourceConfig
	if err := v.UnmarshalKey("sources", &sources); err != nil {
		return Config{}, fmt.Errorf("decode sources: %w", err)
	}

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		LogLevel:         v.GetString("log-level"),
		MetricsAddr:      v.GetString("metrics-addr"),
		Store:            storeConfig(v),
		PageSize:         v.GetInt("page-size"),
		FetchMaxAttempts: v.GetInt("fetch-max-attempts"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		MaxBackoff:       v.GetDuration("max-backoff"),
		BlockWindow:      v.GetUint64("block-window"),
		Report:           v.GetString("report"),
		Resume:           v.GetBool("resume"),
		Sources:          sources,
	}

	return cfg, nil
}

func setCommonDefaults(v *viper.Viper) {
	v.SetEnvPrefix("AIRDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("store", "file")
	v.SetDefault("store-path", "./data/events_data.json")
	v.SetDefault("redis-key", "airdropscope:known_keys")
	v.SetDefault("namespace", "default")
}

func readConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}
	return nil
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Kind:          strings.ToLower(v.GetString("store")),
		Path:          v.GetString("store-path"),
		PGDSN:         v.GetString("pg-dsn"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		RedisKey:      v.GetString("redis-key"),
		Namespace:     v.GetString("namespace"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

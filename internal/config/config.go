package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	Pool              string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	Checkpoint        string
	CheckpointEnabled bool
	Script            string
	EventsOut         string
	SwapsOut          string
	ReportOut         string
	PGDSN             string
	SnapshotName      string
	SnapshotFile      string
	Hook              string
	PoolManager       string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LIMITSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("events-out", "./data/events.jsonl")
	v.SetDefault("snapshot-name", "default")
	v.SetDefault("snapshot-file", "./data/snapshot.json")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		Pool:              strings.TrimSpace(v.GetString("pool")),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		Script:            v.GetString("script"),
		EventsOut:         v.GetString("events-out"),
		SwapsOut:          v.GetString("swaps-out"),
		ReportOut:         v.GetString("report-out"),
		PGDSN:             v.GetString("pg-dsn"),
		SnapshotName:      v.GetString("snapshot-name"),
		SnapshotFile:      v.GetString("snapshot-file"),
		Hook:              strings.TrimSpace(v.GetString("hook")),
		PoolManager:       strings.TrimSpace(v.GetString("pool-manager")),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"limitScope/internal/config"
	"limitScope/internal/engine"
	"limitScope/internal/model"
	"limitScope/internal/sim"
	"limitScope/internal/storage"
	"limitScope/internal/storage/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "limitscope",
		Short:        "Tick-bucketed limit orders on hooked AMM pools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an action script against the in-memory pool manager",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("script", "", "JSONL action script")
	simulateCmd.Flags().String("events-out", "./data/events.jsonl", "engine events JSONL path")
	simulateCmd.Flags().String("report-out", "", "report JSON path, stdout when empty")
	addEngineFlags(simulateCmd)
	root.AddCommand(simulateCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay on-chain Swap logs of a V3 pool through the order book",
		RunE:  runReplay,
	}
	replayCmd.Flags().String("rpc", "", "RPC URL")
	replayCmd.Flags().String("pool", "", "V3 pool address")
	replayCmd.Flags().Uint64("from", 0, "start block (inclusive, at least 1)")
	replayCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	replayCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().String("script", "", "JSONL setup script (fund and place actions)")
	replayCmd.Flags().String("events-out", "./data/events.jsonl", "engine events JSONL path")
	replayCmd.Flags().String("swaps-out", "", "optional JSONL path for observed swaps")
	replayCmd.Flags().String("snapshot-file", "./data/snapshot.json", "snapshot file used without Postgres")
	addEngineFlags(replayCmd)
	root.AddCommand(replayCmd)

	root.AddCommand(newClaimIDCmd())

	return root
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for events and snapshots")
	cmd.Flags().String("snapshot-name", "default", "snapshot name in Postgres")
	cmd.Flags().String("hook", "", "hook address, default built in")
	cmd.Flags().String("pool-manager", "", "pool manager address, default built in")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
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

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseOptionalAddress(name, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, value)
	}
	return common.HexToAddress(value), nil
}

// engineBackend is the event and snapshot wiring shared by simulate and replay.
type engineBackend struct {
	store     *postgres.Store
	events    engine.EventSink
	snapshots sim.SnapshotStore
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*engineBackend, error) {
	backend := &engineBackend{}
	sinks := storage.Fanout{}
	if cfg.EventsOut != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.EventsOut))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		backend.store = store
		sinks = append(sinks, store.EventSink(ctx))
		backend.snapshots = pgSnapshots{store: store, name: cfg.SnapshotName}
		logger.Info("postgres enabled", zap.String("snapshot", cfg.SnapshotName))
	} else if cfg.SnapshotFile != "" {
		backend.snapshots = sim.NewFileSnapshots(cfg.SnapshotFile)
	}

	if len(sinks) > 0 {
		backend.events = sinks
	}
	return backend, nil
}

func (b *engineBackend) Close() {
	if b.store != nil {
		b.store.Close()
	}
}

func (b *engineBackend) environment(cfg config.Config, logger *zap.Logger) (*sim.Environment, error) {
	hook, err := parseOptionalAddress("hook", cfg.Hook)
	if err != nil {
		return nil, err
	}
	manager, err := parseOptionalAddress("pool manager", cfg.PoolManager)
	if err != nil {
		return nil, err
	}
	return sim.NewEnvironment(sim.Options{
		Hook:        hook,
		PoolManager: manager,
		Events:      b.events,
	}, logger), nil
}

type pgSnapshots struct {
	store *postgres.Store
	name  string
}

func (p pgSnapshots) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	return p.store.SaveSnapshot(ctx, p.name, snap)
}

func (p pgSnapshots) LoadSnapshot(ctx context.Context) (model.Snapshot, bool, error) {
	return p.store.LoadSnapshot(ctx, p.name)
}

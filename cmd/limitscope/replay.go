package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"limitScope/internal/chain"
	"limitScope/internal/config"
	"limitScope/internal/dex"
	"limitScope/internal/indexer"
	"limitScope/internal/model"
	"limitScope/internal/sim"
	"limitScope/internal/storage"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Pool) {
		return fmt.Errorf("invalid pool address: %q", cfg.Pool)
	}
	if cfg.FromBlock == 0 {
		return fmt.Errorf("from block must be at least 1")
	}
	poolAddr := common.HexToAddress(cfg.Pool)

	var actions []sim.Action
	if cfg.Script != "" {
		file, err := os.Open(cfg.Script)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		actions, err = sim.ReadActions(file)
		file.Close()
		if err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	// The baseline is the pool state before the first replayed block.
	meta, err := dex.FetchPoolMeta(ctx, chainClient, poolAddr, cfg.FromBlock-1)
	if err != nil {
		return fmt.Errorf("pool metadata: %w", err)
	}
	if meta.Slot0 == nil {
		return fmt.Errorf("pool %s returned no slot0", poolAddr.Hex())
	}

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	env, err := backend.environment(cfg, logger)
	if err != nil {
		return err
	}
	key := meta.Key(env.Engine.Hook())

	checkpoint := replayCheckpoint(cfg, backend, poolAddr, env)
	resumed := false
	if checkpoint != nil {
		last, ok, err := checkpoint.Load(ctx)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && last >= cfg.FromBlock {
			if err := resumeEnvironment(ctx, env, backend); err != nil {
				return err
			}
			resumed = true
			logger.Info("resumed order book", zap.Uint64("last_processed", last))
		}
	}

	runner := sim.NewRunner(env, logger)
	if !resumed {
		if err := env.AMM.Initialize(ctx, key, meta.Slot0.Tick); err != nil {
			return fmt.Errorf("initialize pool: %w", err)
		}
	} else {
		actions = fundActions(actions)
	}
	runner.UsePool(key)
	if _, err := runner.Run(ctx, actions); err != nil {
		return fmt.Errorf("setup script: %w", err)
	}

	decoder, err := dex.NewSwapDecoder()
	if err != nil {
		return err
	}

	sink := &tickFeeder{
		ctx:    ctx,
		env:    env,
		key:    key,
		logger: logger,
	}
	if cfg.SwapsOut != "" {
		sink.swaps = storage.NewJsonlStorage(cfg.SwapsOut)
	}

	replay := indexer.NewRunner(indexer.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Addresses:    []common.Address{poolAddr},
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, decoder, decoder.Topic(), sink, checkpoint, logger)

	logger.Info("replay start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("pool", poolAddr.Hex()),
		zap.String("pool_id", key.ID().Hex()),
		zap.Int32("tick", meta.Slot0.Tick),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", checkpoint != nil),
		zap.Bool("resumed", resumed),
	)

	if err := replay.Run(ctx); err != nil {
		return err
	}

	logCustody(ctx, chainClient, env, key, logger)
	if backend.snapshots != nil && checkpoint == nil {
		if err := backend.snapshots.SaveSnapshot(ctx, env.Engine.Snapshot()); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	logger.Info("replay complete", zap.Int("swaps", sink.applied))
	return nil
}

// replayCheckpoint returns nil when replay progress is not persisted. The checkpoint
// must be built once the environment exists.
func replayCheckpoint(cfg config.Config, backend *engineBackend, pool common.Address, env *sim.Environment) indexer.Checkpointer {
	if !cfg.CheckpointEnabled || backend.snapshots == nil {
		return nil
	}
	var progress indexer.Checkpointer
	if backend.store != nil {
		progress = indexer.NewStoreCheckpoint(backend.store, "replay:"+cfg.SnapshotName)
	} else {
		progress = indexer.NewFileCheckpoint(cfg.Checkpoint, "replay:"+pool.Hex())
	}
	return &bookCheckpoint{env: env, snapshots: backend.snapshots, progress: progress}
}

// bookCheckpoint commits replay progress by saving the order book together with the
// last processed block in one snapshot write. progress is written afterwards and only
// read when no snapshot exists.
type bookCheckpoint struct {
	env       *sim.Environment
	snapshots sim.SnapshotStore
	progress  indexer.Checkpointer
}

func (c *bookCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	snap, ok, err := c.snapshots.LoadSnapshot(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("load snapshot: %w", err)
	}
	if ok && snap.Block > 0 {
		return snap.Block, true, nil
	}
	last, found, err := c.progress.Load(ctx)
	if err != nil {
		return 0, false, err
	}
	if found {
		return 0, false, fmt.Errorf("checkpoint at block %d found without a snapshot; remove the checkpoint to start over", last)
	}
	return 0, false, nil
}

func (c *bookCheckpoint) Save(ctx context.Context, lastProcessed uint64) error {
	snap := c.env.Engine.Snapshot()
	snap.Block = lastProcessed
	if err := c.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return c.progress.Save(ctx, lastProcessed)
}

func resumeEnvironment(ctx context.Context, env *sim.Environment, backend *engineBackend) error {
	snap, ok, err := backend.snapshots.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("snapshot missing on resume")
	}
	if err := env.Restore(ctx, snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	return nil
}

// fundActions keeps the funding steps of a setup script. Orders of a resumed run are
// already in the snapshot.
func fundActions(actions []sim.Action) []sim.Action {
	out := make([]sim.Action, 0, len(actions))
	for _, action := range actions {
		if action.Op == sim.OpFund {
			out = append(out, action)
		}
	}
	return out
}

// tickFeeder moves the simulated pool to every observed swap tick, which crosses
// resting buckets through the engine's after-swap hook. The runner commits each batch
// through its checkpoint once PutSwaps returns.
type tickFeeder struct {
	ctx     context.Context
	env     *sim.Environment
	key     model.PoolKey
	swaps   storage.SwapSink
	logger  *zap.Logger
	applied int
}

func (f *tickFeeder) PutSwaps(swaps []model.SwapObservation) error {
	for _, swap := range swaps {
		sender := common.Address{}
		if common.IsHexAddress(swap.Sender) {
			sender = common.HexToAddress(swap.Sender)
		}
		if err := f.env.AMM.MoveTick(f.ctx, sender, f.key, swap.Tick); err != nil {
			return fmt.Errorf("swap %s:%d at tick %d: %w", swap.TxHash, swap.LogIndex, swap.Tick, err)
		}
		f.applied++
	}
	if f.swaps != nil {
		if err := f.swaps.PutSwaps(swaps); err != nil {
			return err
		}
	}
	return nil
}

func logCustody(ctx context.Context, caller dex.ContractCaller, env *sim.Environment, key model.PoolKey, logger *zap.Logger) {
	cache := dex.NewTokenMetaCache()
	for _, currency := range []common.Address{key.Currency0, key.Currency1} {
		meta, err := dex.CachedTokenMeta(ctx, caller, cache, currency, logger)
		if err != nil {
			logger.Warn("token metadata unavailable", zap.String("token", currency.Hex()), zap.Error(err))
			meta = model.TokenMeta{Address: currency.Hex()}
		}
		held := env.Vault.BalanceOf(env.Engine.Hook(), currency)
		logger.Info("hook custody",
			zap.String("token", currency.Hex()),
			zap.String("symbol", meta.Symbol),
			zap.String("amount", sim.FormatAmount(held, meta.Decimals)),
			zap.String("raw", held.Dec()),
		)
	}
	snap := env.Engine.Snapshot()
	logger.Info("order book", zap.Int("buckets", len(snap.Buckets)), zap.Int("claims", len(snap.Claims)))
}

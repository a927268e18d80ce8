package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"limitScope/internal/engine"
	"limitScope/internal/model"
	"limitScope/internal/tickmath"
)

// SnapshotStore persists engine snapshots between runs.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context) (model.Snapshot, bool, error)
}

// Restore rebuilds the environment from snap: pools are created in the simulator at
// their last tick, engine state is replaced, and the hook is credited with the
// custody snap implies (resting inputs plus unredeemed proceeds). Pool reserves are
// not part of a snapshot and must be funded again. snap is checked in full before
// anything changes, so a rejected snapshot leaves the environment as it was.
func (e *Environment) Restore(ctx context.Context, snap model.Snapshot) error {
	hook := e.Engine.Hook()
	keys := make(map[common.Hash]model.PoolKey, len(snap.Pools))
	for _, p := range snap.Pools {
		if p.Key.Hooks != hook {
			return fmt.Errorf("restore pool %s: hook %s is not %s", p.Key.ID().Hex(), p.Key.Hooks.Hex(), hook.Hex())
		}
		if !tickmath.InRange(p.LastTick) {
			return fmt.Errorf("restore pool %s: tick out of range: %d", p.Key.ID().Hex(), p.LastTick)
		}
		keys[p.Key.ID()] = p.Key
	}
	if err := engine.ValidateSnapshot(snap); err != nil {
		return err
	}
	credits, err := custodyOf(snap, keys)
	if err != nil {
		return err
	}

	for _, p := range snap.Pools {
		if _, ok := e.AMM.Tick(p.Key); !ok {
			if err := e.AMM.Initialize(ctx, p.Key, p.LastTick); err != nil {
				return fmt.Errorf("restore pool %s: %w", p.Key.ID().Hex(), err)
			}
		}
	}
	if err := e.Engine.Restore(snap); err != nil {
		return err
	}

	mark := e.Journal.Snapshot()
	for _, c := range credits {
		if err := e.Vault.Credit(hook, c.currency, c.amount); err != nil {
			e.Journal.RevertToSnapshot(mark)
			return fmt.Errorf("restore custody: %w", err)
		}
	}
	e.Journal.Reset()
	return nil
}

type custodyCredit struct {
	currency common.Address
	amount   *uint256.Int
}

func custodyOf(snap model.Snapshot, keys map[common.Hash]model.PoolKey) ([]custodyCredit, error) {
	var out []custodyCredit
	add := func(currency common.Address, amount string) error {
		if amount == "" {
			return nil
		}
		value, err := parseAmount(amount)
		if err != nil {
			return err
		}
		if !value.IsZero() {
			out = append(out, custodyCredit{currency: currency, amount: value})
		}
		return nil
	}
	for _, b := range snap.Buckets {
		key := keys[common.HexToHash(b.PoolID)]
		if err := add(key.Currency(b.ZeroForOne), b.Amount); err != nil {
			return nil, fmt.Errorf("restore custody for bucket %s/%d: %w", b.PoolID, b.Tick, err)
		}
	}
	for _, c := range snap.Claims {
		for _, rd := range c.Rounds {
			if err := add(c.Pool.OutputCurrency(c.ZeroForOne), rd.Claimable); err != nil {
				return nil, fmt.Errorf("restore custody for claim %s: %w", c.ID, err)
			}
		}
	}
	return out, nil
}

// FileSnapshots keeps a snapshot as a JSON file, replacing it atomically.
type FileSnapshots struct {
	path string
}

func NewFileSnapshots(path string) *FileSnapshots {
	return &FileSnapshots{path: path}
}

func (f *FileSnapshots) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshots) LoadSnapshot(context.Context) (model.Snapshot, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

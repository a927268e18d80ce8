package sim

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"limitScope/internal/engine"
)

func TestRestoreRebuildsCustody(t *testing.T) {
	ctx := context.Background()
	env := NewEnvironment(Options{}, nil)
	runner := NewRunner(env, nil)
	if _, err := runner.Run(ctx, readScript(t, setupScript)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	store := NewFileSnapshots(filepath.Join(t.TempDir(), "snap", "state.json"))
	if err := store.SaveSnapshot(ctx, env.Engine.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, ok, err := store.LoadSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}

	restored := NewEnvironment(Options{}, nil)
	if err := restored.Restore(ctx, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	key := testPool(restored)
	if got := restored.Vault.BalanceOf(restored.Engine.Hook(), key.Currency0); got.Uint64() != 100 {
		t.Fatalf("custody mismatch: %s", got.Dec())
	}
	if tick, ok := restored.AMM.Tick(key); !ok || tick != 0 {
		t.Fatalf("amm tick mismatch: %d %v", tick, ok)
	}

	fund := readScript(t, `{"op":"fund","account":"amm","currency":"currency1","amount":"100000"}`)
	rerun := NewRunner(restored, nil)
	rerun.UsePool(key)
	if _, err := rerun.Run(ctx, append(fund, readScript(t, executeScript)...)); err != nil {
		t.Fatalf("run after restore: %v", err)
	}
	if got := restored.Vault.BalanceOf(common.HexToAddress(alice), key.Currency1); got.IsZero() {
		t.Fatalf("alice not paid after restore")
	}
}

func TestFileSnapshotsMissing(t *testing.T) {
	store := NewFileSnapshots(filepath.Join(t.TempDir(), "none.json"))
	if _, ok, err := store.LoadSnapshot(context.Background()); err != nil || ok {
		t.Fatalf("expected missing snapshot, ok=%v err=%v", ok, err)
	}
}

func TestRestoreRejectsForeignHook(t *testing.T) {
	env := NewEnvironment(Options{}, nil)
	other := NewEnvironment(Options{Hook: common.HexToAddress("0x00000000000000000000000000000000000000ff")}, nil)
	key := testPool(other)
	if err := other.AMM.Initialize(context.Background(), key, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := env.Restore(context.Background(), other.Engine.Snapshot()); err == nil {
		t.Fatalf("expected hook mismatch")
	}
}

func TestRestoreRejectsInconsistentSnapshot(t *testing.T) {
	ctx := context.Background()
	env := NewEnvironment(Options{}, nil)
	runner := NewRunner(env, nil)
	if _, err := runner.Run(ctx, readScript(t, setupScript)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	snap := env.Engine.Snapshot()
	if len(snap.Balances) == 0 {
		t.Fatalf("setup left no balances")
	}
	snap.Balances[0].Amount = "1"

	restored := NewEnvironment(Options{}, nil)
	if err := restored.Restore(ctx, snap); !errors.Is(err, engine.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	key := testPool(restored)
	if _, ok := restored.AMM.Tick(key); ok {
		t.Fatalf("pool created from rejected snapshot")
	}
	if _, ok := restored.Engine.LastTick(key); ok {
		t.Fatalf("engine kept pool from rejected snapshot")
	}
	if got := restored.Vault.Balances(); len(got) != 0 {
		t.Fatalf("custody credited from rejected snapshot: %+v", got)
	}
}

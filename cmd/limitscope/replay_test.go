package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"limitScope/internal/indexer"
	"limitScope/internal/model"
	"limitScope/internal/sim"
)

type failingSnapshots struct{}

func (failingSnapshots) SaveSnapshot(context.Context, model.Snapshot) error {
	return errors.New("disk full")
}

func (failingSnapshots) LoadSnapshot(context.Context) (model.Snapshot, bool, error) {
	return model.Snapshot{}, false, nil
}

func replayEnv(t *testing.T) *sim.Environment {
	t.Helper()
	env := sim.NewEnvironment(sim.Options{}, nil)
	key := model.NewPoolKey(common.HexToAddress("0x01"), common.HexToAddress("0x02"), 3000, 60, env.Engine.Hook())
	if err := env.AMM.Initialize(context.Background(), key, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return env
}

func TestBookCheckpointCommitsWithSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snapshots := sim.NewFileSnapshots(filepath.Join(dir, "book.json"))
	progress := indexer.NewFileCheckpoint(filepath.Join(dir, "checkpoint.json"), "replay:test")
	cp := &bookCheckpoint{env: replayEnv(t), snapshots: snapshots, progress: progress}

	if _, ok, err := cp.Load(ctx); err != nil || ok {
		t.Fatalf("fresh checkpoint: ok=%v err=%v", ok, err)
	}
	if err := cp.Save(ctx, 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, ok, err := snapshots.LoadSnapshot(ctx)
	if err != nil || !ok || snap.Block != 42 || len(snap.Pools) != 1 {
		t.Fatalf("snapshot: block=%d pools=%d ok=%v err=%v", snap.Block, len(snap.Pools), ok, err)
	}
	if last, ok, err := progress.Load(ctx); err != nil || !ok || last != 42 {
		t.Fatalf("progress: last=%d ok=%v err=%v", last, ok, err)
	}

	// A crash between the two writes leaves progress behind the snapshot.
	if err := progress.Save(ctx, 40); err != nil {
		t.Fatalf("rewind progress: %v", err)
	}
	if last, ok, err := cp.Load(ctx); err != nil || !ok || last != 42 {
		t.Fatalf("load must follow the snapshot: last=%d ok=%v err=%v", last, ok, err)
	}
}

func TestBookCheckpointKeepsProgressOnSnapshotFailure(t *testing.T) {
	ctx := context.Background()
	progress := indexer.NewFileCheckpoint(filepath.Join(t.TempDir(), "checkpoint.json"), "replay:test")
	cp := &bookCheckpoint{env: replayEnv(t), snapshots: failingSnapshots{}, progress: progress}

	if err := cp.Save(ctx, 7); err == nil {
		t.Fatalf("expected snapshot failure")
	}
	if _, ok, err := progress.Load(ctx); err != nil || ok {
		t.Fatalf("progress advanced without a snapshot: ok=%v err=%v", ok, err)
	}
}

func TestBookCheckpointRejectsOrphanProgress(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	progress := indexer.NewFileCheckpoint(filepath.Join(dir, "checkpoint.json"), "replay:test")
	if err := progress.Save(ctx, 9); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	cp := &bookCheckpoint{env: replayEnv(t), snapshots: sim.NewFileSnapshots(filepath.Join(dir, "book.json")), progress: progress}
	if _, _, err := cp.Load(ctx); err == nil {
		t.Fatalf("expected orphan checkpoint error")
	}
}

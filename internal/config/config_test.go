package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 2000 || cfg.MaxRetries != 5 || cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
	if !cfg.CheckpointEnabled || cfg.SnapshotName != "default" || cfg.LogLevel != "info" {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "limitscope.yaml")
	content := "rpc: http://file\nbatch-size: 50\npool: \" 0xabc \"\nlog-level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LIMITSCOPE_BATCH_SIZE", "75")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Uint64("from", 0, "")
	if err := flags.Parse([]string{"--log-level=debug", "--from=10"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://file" {
		t.Fatalf("rpc from file mismatch: %q", cfg.RPCURL)
	}
	if cfg.BatchSize != 75 {
		t.Fatalf("env should override file: %d", cfg.BatchSize)
	}
	if cfg.LogLevel != "debug" || cfg.FromBlock != 10 {
		t.Fatalf("flags should win: %+v", cfg)
	}
	if cfg.Pool != "0xabc" {
		t.Fatalf("pool not trimmed: %q", cfg.Pool)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

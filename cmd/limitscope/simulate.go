package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"limitScope/internal/sim"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}
	file, err := os.Open(cfg.Script)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	actions, err := sim.ReadActions(file)
	file.Close()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	// Simulation snapshots only go to Postgres.
	cfg.SnapshotFile = ""
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	env, err := backend.environment(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("script", cfg.Script),
		zap.Int("actions", len(actions)),
		zap.String("events_out", cfg.EventsOut),
		zap.String("hook", env.Engine.Hook().Hex()),
	)

	results, runErr := sim.NewRunner(env, logger).Run(ctx, actions)
	if err := writeReport(cfg.ReportOut, env.Report(results)); err != nil {
		return err
	}

	if backend.snapshots != nil {
		if err := backend.snapshots.SaveSnapshot(ctx, env.Engine.Snapshot()); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("simulate complete", zap.Int("actions", len(results)))
	return nil
}

func writeReport(path string, report sim.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"limitScope/internal/engine"
	"limitScope/internal/model"
)

func TestClaimIDCommand(t *testing.T) {
	c0 := "0x0000000000000000000000000000000000000001"
	c1 := "0x0000000000000000000000000000000000000002"
	hooks := "0x00000000000000000000000000000000000010c0"

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"claim-id", "--currency0", c1, "--currency1", c0, "--hooks", hooks, "--tick", "-1", "--zero-for-one=false"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	key := model.NewPoolKey(common.HexToAddress(c0), common.HexToAddress(c1), 3000, 60, common.HexToAddress(hooks))
	want := engine.ClaimID(key, -60, false).Hex()
	if !strings.Contains(out.String(), want) {
		t.Fatalf("output %q missing %s", out.String(), want)
	}
	if !strings.Contains(out.String(), "tick     -60") {
		t.Fatalf("output %q missing normalized tick", out.String())
	}
}

func TestClaimIDRejectsBadAddress(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"claim-id", "--currency0", "nope"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSimulateCommand(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.jsonl")
	content := strings.Join([]string{
		`{"op":"fund","account":"0x000000000000000000000000000000000000a11c","currency":"0x0000000000000000000000000000000000000001","amount":"500"}`,
		`{"op":"init","pool":{"token0":"0x0000000000000000000000000000000000000001","token1":"0x0000000000000000000000000000000000000002","fee":500,"tick_spacing":10},"tick":0}`,
		`{"op":"fund","account":"amm","currency":"currency1","amount":"10000"}`,
		`{"op":"place","account":"0x000000000000000000000000000000000000a11c","tick":15,"amount":"200","zero_for_one":true}`,
		`{"op":"move","tick":25}`,
		`{"op":"redeem","account":"0x000000000000000000000000000000000000a11c","tick":10,"zero_for_one":true}`,
	}, "\n")
	if err := os.WriteFile(script, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	events := filepath.Join(dir, "out", "events.jsonl")
	report := filepath.Join(dir, "out", "report.json")

	root := newRootCmd()
	root.SetArgs([]string{"simulate", "--script", script, "--events-out", events, "--report-out", report, "--log-level", "error"})
	if err := root.Execute(); err != nil {
		t.Fatalf("simulate: %v", err)
	}

	data, err := os.ReadFile(events)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	for _, kind := range []string{model.EventPoolInitialized, model.EventOrderPlaced, model.EventBucketExecuted, model.EventRedeemed} {
		if !bytes.Contains(data, []byte(kind)) {
			t.Fatalf("events missing %s:\n%s", kind, data)
		}
	}
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

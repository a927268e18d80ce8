package sim

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Script operations.
const (
	OpFund   = "fund"
	OpInit   = "init"
	OpPlace  = "place"
	OpCancel = "cancel"
	OpMove   = "move"
	OpRedeem = "redeem"
)

// Action is one line of a simulation script.
//
// Accounts and currencies are hex addresses or one of the aliases "hook", "amm",
// "currency0" and "currency1". Omitted pools refer to the last initialized pool.
type Action struct {
	Op          string    `json:"op"`
	Account     string    `json:"account,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Tick        int32     `json:"tick,omitempty"`
	ZeroForOne  bool      `json:"zero_for_one,omitempty"`
	Pool        *PoolSpec `json:"pool,omitempty"`
	ExpectError string    `json:"expect_error,omitempty"`
}

// PoolSpec names a pool by its tokens. The hook is always the engine.
type PoolSpec struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
}

const maxLineSize = 1 << 20

// ReadActions parses a JSONL script. Blank lines and lines starting with # are skipped.
func ReadActions(r io.Reader) ([]Action, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var actions []Action
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		decoder := json.NewDecoder(bytes.NewReader([]byte(text)))
		decoder.DisallowUnknownFields()
		var action Action
		if err := decoder.Decode(&action); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := action.validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		actions = append(actions, action)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return actions, nil
}

func (a Action) validate() error {
	switch a.Op {
	case OpFund:
		if a.Account == "" || a.Currency == "" || a.Amount == "" {
			return fmt.Errorf("fund needs account, currency and amount")
		}
	case OpInit:
		if a.Pool == nil {
			return fmt.Errorf("init needs pool")
		}
	case OpPlace:
		if a.Account == "" || a.Amount == "" {
			return fmt.Errorf("place needs account and amount")
		}
	case OpCancel, OpRedeem:
		if a.Account == "" {
			return fmt.Errorf("%s needs account", a.Op)
		}
	case OpMove:
	default:
		return fmt.Errorf("unknown op %q", a.Op)
	}
	return nil
}

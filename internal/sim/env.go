// Package sim wires the order book to the in-memory pool manager and custody vault,
// and runs JSONL action scripts against them.
package sim

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"limitScope/internal/amm"
	"limitScope/internal/custody"
	"limitScope/internal/engine"
	"limitScope/internal/journal"
)

// Default identities of the simulated contracts.
var (
	DefaultHook        = common.HexToAddress("0x00000000000000000000000000000000000010c0")
	DefaultPoolManager = common.HexToAddress("0x0000000000000000000000000000000000000a44")
)

// Options configures an Environment. Zero addresses fall back to the defaults.
type Options struct {
	Hook        common.Address
	PoolManager common.Address
	Events      engine.EventSink
}

// Environment is an engine bound to a simulator and vault sharing one journal, so a
// failed engine operation also undoes its token movements and swap deltas.
type Environment struct {
	Journal *journal.Journal
	Vault   *custody.Vault
	AMM     *amm.Simulator
	Engine  *engine.Engine
}

// NewEnvironment builds and wires an Environment.
func NewEnvironment(opts Options, logger *zap.Logger) *Environment {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Hook == (common.Address{}) {
		opts.Hook = DefaultHook
	}
	if opts.PoolManager == (common.Address{}) {
		opts.PoolManager = DefaultPoolManager
	}

	j := journal.New()
	vault := custody.NewVault(j)
	simulator := amm.NewSimulator(vault, opts.PoolManager, j, logger.Named("amm"))
	eng := engine.NewEngine(engine.Config{
		Hook:    opts.Hook,
		Journal: j,
		Events:  opts.Events,
	}, simulator, vault.Custodian(opts.Hook), logger.Named("engine"))
	simulator.RegisterHooks(opts.Hook, eng)

	return &Environment{
		Journal: j,
		Vault:   vault,
		AMM:     simulator,
		Engine:  eng,
	}
}

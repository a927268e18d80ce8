package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"limitScope/internal/model"
)

// SwapDecoder decodes Uniswap V3 / PancakeSwap V3 Swap logs.
type SwapDecoder struct {
	event abi.Event
}

// NewSwapDecoder builds a decoder from the V3 pool ABI.
func NewSwapDecoder() (*SwapDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	event, ok := poolABI.Events["Swap"]
	if !ok {
		return nil, fmt.Errorf("pool abi has no Swap event")
	}
	return &SwapDecoder{event: event}, nil
}

// Topic returns the Swap event signature hash used to filter logs.
func (d *SwapDecoder) Topic() common.Hash {
	return d.event.ID
}

// CanDecode checks whether the log is a Swap.
func (d *SwapDecoder) CanDecode(log types.Log) bool {
	return len(log.Topics) > 0 && log.Topics[0] == d.event.ID
}

// Decode converts a Swap log into an observation.
func (d *SwapDecoder) Decode(log types.Log) (model.SwapObservation, error) {
	if !d.CanDecode(log) {
		return model.SwapObservation{}, fmt.Errorf("not a swap log: tx %s index %d", log.TxHash.Hex(), log.Index)
	}
	indexedArgs := indexedArguments(d.event.Inputs)
	if len(log.Topics) != len(indexedArgs)+1 {
		return model.SwapObservation{}, fmt.Errorf("expected %d topics, got %d", len(indexedArgs)+1, len(log.Topics))
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArgs, log.Topics[1:]); err != nil {
		return model.SwapObservation{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.SwapObservation{}, fmt.Errorf("unpack swap: %w", err)
	}
	if len(values) != 5 {
		return model.SwapObservation{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.SwapObservation{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.SwapObservation{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.SwapObservation{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.SwapObservation{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.SwapObservation{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapObservation{}, err
	}

	return model.SwapObservation{
		BlockNumber:  log.BlockNumber,
		TxHash:       log.TxHash.Hex(),
		LogIndex:     uint64(log.Index),
		Pool:         log.Address.Hex(),
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

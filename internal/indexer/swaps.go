package indexer

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/core/types"

	"limitScope/internal/model"
)

// SwapLogDecoder turns a raw log into a swap observation.
type SwapLogDecoder interface {
	CanDecode(log types.Log) bool
	Decode(log types.Log) (model.SwapObservation, error)
}

func logID(log types.Log) string {
	return fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
}

// decodeSwaps decodes logs in chain order, skipping removed logs, logs the decoder
// does not recognize, and logs already in seen.
func decodeSwaps(decoder SwapLogDecoder, logs []types.Log, seen map[string]struct{}) ([]model.SwapObservation, error) {
	ordered := make([]types.Log, len(logs))
	copy(ordered, logs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BlockNumber != ordered[j].BlockNumber {
			return ordered[i].BlockNumber < ordered[j].BlockNumber
		}
		return ordered[i].Index < ordered[j].Index
	})

	swaps := make([]model.SwapObservation, 0, len(ordered))
	for _, log := range ordered {
		if log.Removed || !decoder.CanDecode(log) {
			continue
		}
		id := logID(log)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		swap, err := decoder.Decode(log)
		if err != nil {
			return nil, fmt.Errorf("decode log %s: %w", id, err)
		}
		swaps = append(swaps, swap)
	}
	return swaps, nil
}

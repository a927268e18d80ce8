package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"limitScope/internal/ledger"
)

// crossingRule maps a direction of tick travel to the bucket side it fills.
type crossingRule struct {
	name string
	// moved reports whether the rule applies to a move from oldTick to newTick.
	moved func(oldTick, newTick int32) bool
	// zeroForOne is the order side that becomes fillable.
	zeroForOne bool
	// crossed reports whether a bucket boundary was passed by the move.
	crossed func(oldTick, newTick, boundary int32) bool
	// ascending is the travel order buckets execute in.
	ascending bool
}

// Rising price fills orders selling currency0 whose boundary lies in (old, new].
// Falling price fills orders selling currency1 whose boundary lies in (new, old].
// An unchanged tick fills nothing.
var crossingRules = []crossingRule{
	{
		name:       "tick up",
		moved:      func(oldTick, newTick int32) bool { return newTick > oldTick },
		zeroForOne: true,
		crossed:    func(oldTick, newTick, boundary int32) bool { return boundary > oldTick && boundary <= newTick },
		ascending:  true,
	},
	{
		name:       "tick down",
		moved:      func(oldTick, newTick int32) bool { return newTick < oldTick },
		zeroForOne: false,
		crossed:    func(oldTick, newTick, boundary int32) bool { return boundary > newTick && boundary <= oldTick },
		ascending:  false,
	},
}

// crossedBuckets returns the resting buckets of pool that a move from oldTick to newTick
// passes over, in the order the price reaches them.
func crossedBuckets(l *ledger.Ledger, pool common.Hash, oldTick, newTick int32) []ledger.Key {
	var out []ledger.Key
	for _, rule := range crossingRules {
		if !rule.moved(oldTick, newTick) {
			continue
		}
		resting := l.Resting(pool, rule.zeroForOne)
		keys := make([]ledger.Key, 0, len(resting))
		for _, b := range resting {
			if rule.crossed(oldTick, newTick, b.Key.Tick) {
				keys = append(keys, b.Key)
			}
		}
		if !rule.ascending {
			for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
		out = append(out, keys...)
	}
	return out
}

// Package ledger keeps the resting order amount of every (pool, tick, direction) bucket.
package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"limitScope/internal/journal"
)

var (
	ErrBucketUnderflow = errors.New("bucket amount underflow")
	ErrBucketOverflow  = errors.New("bucket amount overflow")
)

// Key addresses one bucket. Tick must already be a lower boundary of the pool's spacing.
type Key struct {
	Pool       common.Hash
	Tick       int32
	ZeroForOne bool
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%t", k.Pool.Hex(), k.Tick, k.ZeroForOne)
}

// Bucket is a key with its resting amount.
type Bucket struct {
	Key    Key
	Amount *uint256.Int
}

// Ledger is the authoritative record of unexecuted inventory.
// It is not safe for concurrent use; the engine serializes access.
type Ledger struct {
	buckets map[Key]*uint256.Int
	journal *journal.Journal
}

// New builds a ledger recording undo steps into j (which may be nil).
func New(j *journal.Journal) *Ledger {
	return &Ledger{
		buckets: make(map[Key]*uint256.Int),
		journal: j,
	}
}

// Amount returns a copy of the resting amount at key.
func (l *Ledger) Amount(key Key) *uint256.Int {
	if amount, ok := l.buckets[key]; ok {
		return amount.Clone()
	}
	return new(uint256.Int)
}

// Add increases the resting amount at key.
func (l *Ledger) Add(key Key, amount *uint256.Int) error {
	current := l.Amount(key)
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("%w: %s + %s at %s", ErrBucketOverflow, current.Dec(), amount.Dec(), key)
	}
	l.set(key, next)
	return nil
}

// Remove decreases the resting amount at key. It never drives the amount below zero.
func (l *Ledger) Remove(key Key, amount *uint256.Int) error {
	current := l.Amount(key)
	if current.Lt(amount) {
		return fmt.Errorf("%w: %s - %s at %s", ErrBucketUnderflow, current.Dec(), amount.Dec(), key)
	}
	l.set(key, new(uint256.Int).Sub(current, amount))
	return nil
}

// Drain zeroes the bucket and returns what was resting.
func (l *Ledger) Drain(key Key) *uint256.Int {
	current := l.Amount(key)
	if !current.IsZero() {
		l.set(key, new(uint256.Int))
	}
	return current
}

// Set overwrites the resting amount at key. Used when restoring persisted state.
func (l *Ledger) Set(key Key, amount *uint256.Int) {
	l.set(key, amount.Clone())
}

func (l *Ledger) set(key Key, amount *uint256.Int) {
	prev, existed := l.buckets[key]
	if amount.IsZero() {
		delete(l.buckets, key)
	} else {
		l.buckets[key] = amount
	}
	l.journal.Append(func() {
		if existed {
			l.buckets[key] = prev
		} else {
			delete(l.buckets, key)
		}
	})
}

// Buckets returns every non-empty bucket ordered by pool, tick, direction.
func (l *Ledger) Buckets() []Bucket {
	out := make([]Bucket, 0, len(l.buckets))
	for key, amount := range l.buckets {
		out = append(out, Bucket{Key: key, Amount: amount.Clone()})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if c := bytes.Compare(a.Pool[:], b.Pool[:]); c != 0 {
			return c < 0
		}
		if a.Tick != b.Tick {
			return a.Tick < b.Tick
		}
		return !a.ZeroForOne && b.ZeroForOne
	})
	return out
}

// Total returns the sum resting in pool for one direction.
func (l *Ledger) Total(pool common.Hash, zeroForOne bool) *uint256.Int {
	total := new(uint256.Int)
	for key, amount := range l.buckets {
		if key.Pool == pool && key.ZeroForOne == zeroForOne {
			total.Add(total, amount)
		}
	}
	return total
}

// Resting returns the non-empty buckets of one pool side ordered by ascending tick.
func (l *Ledger) Resting(pool common.Hash, zeroForOne bool) []Bucket {
	out := make([]Bucket, 0)
	for key, amount := range l.buckets {
		if key.Pool == pool && key.ZeroForOne == zeroForOne {
			out = append(out, Bucket{Key: key, Amount: amount.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Tick < out[j].Key.Tick })
	return out
}

// Reset drops every bucket without journaling.
func (l *Ledger) Reset() {
	l.buckets = make(map[Key]*uint256.Int)
}

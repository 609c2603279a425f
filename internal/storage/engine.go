// Package storage persists firing outcomes.
//
// The Engine is an ordered byte-key/byte-value store; Ledger layers the key scheme,
// the exclusive access lock and read-back verification on top of it.
package storage

import "context"

// Op is a single put operation.
type Op struct {
	Key   []byte
	Value []byte
}

// Engine is an ordered key-value store. Apply is atomic: either every op is
// visible afterwards or none is.
type Engine interface {
	Apply(ctx context.Context, ops []Op) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	// Scan calls fn for every key with the given prefix, in key order.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// prefixEnd returns the smallest key greater than every key with the given prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

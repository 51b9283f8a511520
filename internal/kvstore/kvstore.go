// Package kvstore defines the columnar key/value contract the MerkleTree
// and SparseArray components are built on (SPEC_FULL.md §4.A), and ships an
// in-memory and a disk-backed (badger) implementation.
//
// Unlike the teacher's common.KVIterator (explicitly "non-deterministic"
// order), this contract guarantees ascending key order within a column:
// the tree and sparse array both depend on lexicographic == numeric
// iteration order over big-endian keys.
package kvstore

import "golang.org/x/xerrors"

// ErrNotFound is returned by nothing in this package directly (Get returns
// a nil slice on absence, matching the teacher's convention) but is kept as
// a sentinel for callers that prefer the error-returning idiom.
var ErrNotFound = xerrors.New("kvstore: key not found")

// Reader reads from one column of a KvStore.
type Reader interface {
	// Get retrieves the value for key in column col. A nil return means
	// absence.
	Get(col int, key []byte) ([]byte, error)
	// Has reports whether key is present in column col.
	Has(col int, key []byte) (bool, error)
}

// Iterator walks a column's key/value pairs in ascending key order,
// optionally bounded to a prefix or key range.
type Iterator interface {
	// Iterate visits every (key, value) pair in column col whose key has
	// the given prefix, in ascending order, until fn returns false.
	Iterate(col int, prefix []byte, fn func(key, value []byte) bool) error
	// IterateRange visits every (key, value) pair in column col with
	// start <= key <= end (both inclusive), in ascending order, until fn
	// returns false. A nil end means unbounded above.
	IterateRange(col int, start, end []byte, fn func(key, value []byte) bool) error
}

// Batch accumulates a set of column mutations to be applied atomically.
type Batch interface {
	Put(col int, key, value []byte)
	Delete(col int, key []byte)
	// Commit applies every Put/Delete in this batch atomically. A failed
	// commit leaves the store unchanged, matching SPEC_FULL.md §5's
	// ordering guarantee for add_hashes.
	Commit() error
}

// KvStore is the full contract components are parametrised over.
type KvStore interface {
	Reader
	Iterator
	// NewBatch starts a new atomic write batch.
	NewBatch() Batch
	// Close releases any underlying resources (file handles, etc).
	Close() error
}

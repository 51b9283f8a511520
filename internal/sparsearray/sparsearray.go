// Package sparsearray implements the persistent sparse index -> blob map
// (SPEC_FULL.md §4.B), grounded on
// original_source/libzeropool-rs/src/sparse_array.rs.
package sparsearray

import (
	"encoding/binary"

	"github.com/zeropool/zeropool-client-go/internal/kvstore"
)

// Codec converts a stored value to and from its canonical binary form.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// SparseArray is a persistent index -> blob map keyed by an 8-byte
// big-endian u64, backed by a single KvStore column.
type SparseArray[T any] struct {
	store KvStore
	col   int
	codec Codec[T]
}

// KvStore is the store a SparseArray is built over: an alias of the full
// kvstore.KvStore interface.
type KvStore = kvstore.KvStore

// New constructs a SparseArray over the given store column.
func New[T any](store KvStore, col int, codec Codec[T]) *SparseArray[T] {
	return &SparseArray[T]{store: store, col: col, codec: codec}
}

func encodeIndex(index uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], index)
	return b[:]
}

func decodeIndex(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

// Get returns the value at index, or ok == false if absent.
func (s *SparseArray[T]) Get(index uint64) (value T, ok bool, err error) {
	raw, err := s.store.Get(s.col, encodeIndex(index))
	if err != nil {
		return value, false, err
	}
	if raw == nil {
		return value, false, nil
	}
	value, err = s.codec.Decode(raw)
	if err != nil {
		return value, false, err
	}
	return value, true, nil
}

// Set writes value at index, committed in its own single-entry batch.
func (s *SparseArray[T]) Set(index uint64, value T) error {
	b := s.store.NewBatch()
	if err := s.SetBatched(b, index, value); err != nil {
		return err
	}
	return b.Commit()
}

// SetBatched stages a write into an externally managed batch, letting
// callers combine it atomically with other mutations in the same batch
// (Set and SetMultiple build on it).
func (s *SparseArray[T]) SetBatched(b kvstore.Batch, index uint64, value T) error {
	raw, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	b.Put(s.col, encodeIndex(index), raw)
	return nil
}

// SetMultiple atomically writes every (index, value) pair in one batch.
func (s *SparseArray[T]) SetMultiple(entries map[uint64]T) error {
	b := s.store.NewBatch()
	for idx, val := range entries {
		if err := s.SetBatched(b, idx, val); err != nil {
			return err
		}
	}
	return b.Commit()
}

// Delete removes the value at index, in its own single-entry batch.
func (s *SparseArray[T]) Delete(index uint64) error {
	b := s.store.NewBatch()
	b.Delete(s.col, encodeIndex(index))
	return b.Commit()
}

// DeleteMultiple atomically removes every given index in one batch.
func (s *SparseArray[T]) DeleteMultiple(indices []uint64) error {
	b := s.store.NewBatch()
	for _, idx := range indices {
		b.Delete(s.col, encodeIndex(idx))
	}
	return b.Commit()
}

// Entry is one (index, value) pair yielded by iteration.
type Entry[T any] struct {
	Index uint64
	Value T
}

// Iter returns every stored entry in ascending index order.
func (s *SparseArray[T]) Iter() ([]Entry[T], error) {
	return s.IterSlice(0, ^uint64(0))
}

// IterSlice returns every stored entry with lo <= index <= hi, in
// ascending order. It is implemented as a prefix-seeked range scan bounded
// by the encoded endpoints (DESIGN.md decision 4), preserving the
// documented "prefix of iter, truncated to the range" contract while
// avoiding a full scan from index zero.
func (s *SparseArray[T]) IterSlice(lo, hi uint64) ([]Entry[T], error) {
	var out []Entry[T]
	var outerErr error
	err := s.store.IterateRange(s.col, encodeIndex(lo), encodeIndex(hi), func(key, value []byte) bool {
		v, err := s.codec.Decode(value)
		if err != nil {
			outerErr = err
			return false
		}
		out = append(out, Entry[T]{Index: decodeIndex(key), Value: v})
		return true
	})
	if err != nil {
		return nil, err
	}
	if outerErr != nil {
		return nil, outerErr
	}
	return out, nil
}

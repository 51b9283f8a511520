// Package poseidon wraps the BN254 scalar field and the Poseidon2 hash
// primitive supplied by gnark-crypto. The pool's core treats field
// arithmetic and hashing as an external primitive it calls into (see
// SPEC_FULL.md ambient/domain stack) rather than something it implements;
// this package is that boundary.
package poseidon

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// Fr is a field element of the circuit's base field.
type Fr = fr.Element

// Zero is the additive identity of Fr.
func Zero() Fr {
	var z Fr
	return z
}

// FromUint64 builds a field element from a small unsigned integer.
func FromUint64(v uint64) Fr {
	var e Fr
	e.SetUint64(v)
	return e
}

// FromBytesReduced reduces an arbitrary byte string (big-endian) modulo the
// field order, mirroring Num::from_uint_reduced(Uint::from_big_endian(..)).
func FromBytesReduced(b []byte) Fr {
	var e Fr
	e.SetBytes(b)
	return e
}

// FromBytesReducedLE reduces a little-endian byte string modulo the field
// order.
func FromBytesReducedLE(b []byte) Fr {
	rev := make([]byte, len(b))
	for i, c := range b {
		rev[len(b)-1-i] = c
	}
	return FromBytesReduced(rev)
}

// Bytes returns the big-endian canonical encoding of e.
func Bytes(e Fr) []byte {
	b := e.Bytes()
	return b[:]
}

var hasherPool = sync.Pool{
	New: func() any {
		return poseidon2.NewMerkleDamgardHasher()
	},
}

// Hash computes a Poseidon2 hash over an arbitrary number of field
// elements, used for note/account hashing and tx-hash/nullifier
// derivation throughout the core.
func Hash(elements ...Fr) Fr {
	h := hasherPool.Get().(interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
		Reset()
	})
	defer func() {
		h.Reset()
		hasherPool.Put(h)
	}()

	for _, e := range elements {
		b := e.Bytes()
		_, _ = h.Write(b[:])
	}
	sum := h.Sum(nil)
	var out Fr
	out.SetBytes(sum)
	return out
}

// Compress is the two-to-one Merkle compression function used by every
// internal tree node: parent = Compress(left, right).
func Compress(left, right Fr) Fr {
	return Hash(left, right)
}

// Add returns a + b.
func Add(a, b Fr) Fr {
	var out Fr
	out.Add(&a, &b)
	return out
}

// Sub returns a - b.
func Sub(a, b Fr) Fr {
	var out Fr
	out.Sub(&a, &b)
	return out
}

// Neg returns -a.
func Neg(a Fr) Fr {
	var out Fr
	out.Neg(&a)
	return out
}

// Mul returns a * b.
func Mul(a, b Fr) Fr {
	var out Fr
	out.Mul(&a, &b)
	return out
}

// Eq reports whether a == b.
func Eq(a, b Fr) bool {
	return a.Equal(&b)
}

// IsZero reports whether a is the additive identity.
func IsZero(a Fr) bool {
	return a.IsZero()
}

// GTE reports whether a >= b when both are interpreted as the canonical
// unsigned integer representative in [0, modulus). TxBuilder does not use
// it: its balance comparisons are done on uint64 values.
func GTE(a, b Fr) bool {
	return a.Cmp(&b) >= 0
}

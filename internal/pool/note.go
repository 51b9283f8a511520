package pool

import (
	"encoding/binary"
	"io"

	"github.com/zeropool/zeropool-client-go/internal/poseidon"
	"golang.org/x/xerrors"
)

// Note is a shielded value note (SPEC_FULL.md §3).
type Note struct {
	D  poseidon.Fr // bounded(DiversifierSizeBits)
	PD poseidon.Fr
	B  poseidon.Fr // bounded(BalanceSizeBits)
	T  poseidon.Fr
}

// ZeroNote is the canonical all-zero note; its hash anchors the
// zero_note_hashes padding chain.
func ZeroNote() Note {
	return Note{}
}

// Hash returns the Poseidon hash of the note's fields, domain-separated by
// field order (d, p_d, b, t) to match SPEC_FULL.md §4.G step 10.
func (n Note) Hash() poseidon.Fr {
	return poseidon.Hash(n.D, n.PD, n.B, n.T)
}

// MarshalBinary is the canonical persisted encoding for a Note: four
// 32-byte big-endian field elements, matching §9's "one canonical binary
// serialisation per persisted type, explicit on the public API."
func (n Note) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 128)
	for _, f := range []poseidon.Fr{n.D, n.PD, n.B, n.T} {
		out = append(out, poseidon.Bytes(f)...)
	}
	return out, nil
}

// UnmarshalBinary parses the encoding produced by MarshalBinary.
func (n *Note) UnmarshalBinary(data []byte) error {
	if len(data) != 128 {
		return xerrors.Errorf("pool: note: expected 128 bytes, got %d", len(data))
	}
	n.D = poseidon.FromBytesReduced(data[0:32])
	n.PD = poseidon.FromBytesReduced(data[32:64])
	n.B = poseidon.FromBytesReduced(data[64:96])
	n.T = poseidon.FromBytesReduced(data[96:128])
	return nil
}

// WriteTo/ReadFrom mirror the Serializable-style explicit io.Writer/Reader
// pattern used by common/commitment.go, kept alongside MarshalBinary for
// call sites that stream into a larger buffer.
func (n Note) WriteTo(w io.Writer) error {
	b, _ := n.MarshalBinary()
	_, err := w.Write(b)
	return err
}

func (n *Note) ReadFrom(r io.Reader) error {
	buf := make([]byte, 128)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return n.UnmarshalBinary(buf)
}

// BoundedNum encodes a small unsigned integer into a balance/diversifier
// field, equivalent to BoundedNum::new(Num::from(v)).
func BoundedFromUint64(v uint64) poseidon.Fr {
	return poseidon.FromUint64(v)
}

// Uint64 extracts the little integer value of a field element assumed to
// fit in 64 bits (balances/energy in this port are always kept within
// BalanceSizeBits, so this never truncates silently in practice).
func Uint64(f poseidon.Fr) uint64 {
	b := poseidon.Bytes(f)
	return binary.BigEndian.Uint64(b[len(b)-8:])
}

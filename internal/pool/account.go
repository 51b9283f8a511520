package pool

import (
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
	"golang.org/x/xerrors"
)

// Account is a shielded account record (SPEC_FULL.md §3). `I` is the
// spend-interval index: the pool index at which the account was created,
// used to compute energy accrual for subsequent spends.
type Account struct {
	D  poseidon.Fr
	PD poseidon.Fr
	I  poseidon.Fr
	B  poseidon.Fr
	E  poseidon.Fr
}

// ZeroAccount is the canonical all-zero account used to anchor batches
// (e.g. a delegated-deposit slot) that carry no real spendable account.
func ZeroAccount() Account {
	return Account{}
}

// Hash returns the Poseidon hash of the account's fields.
func (a Account) Hash() poseidon.Fr {
	return poseidon.Hash(a.D, a.PD, a.I, a.B, a.E)
}

// MarshalBinary is the canonical persisted encoding: five 32-byte
// big-endian field elements.
func (a Account) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 160)
	for _, f := range []poseidon.Fr{a.D, a.PD, a.I, a.B, a.E} {
		out = append(out, poseidon.Bytes(f)...)
	}
	return out, nil
}

// UnmarshalBinary parses the encoding produced by MarshalBinary.
func (a *Account) UnmarshalBinary(data []byte) error {
	if len(data) != 160 {
		return xerrors.Errorf("pool: account: expected 160 bytes, got %d", len(data))
	}
	a.D = poseidon.FromBytesReduced(data[0:32])
	a.PD = poseidon.FromBytesReduced(data[32:64])
	a.I = poseidon.FromBytesReduced(data[64:96])
	a.B = poseidon.FromBytesReduced(data[96:128])
	a.E = poseidon.FromBytesReduced(data[128:160])
	return nil
}

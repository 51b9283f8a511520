// Package backend implements the per-chain deposit-signing conventions a
// Client needs to authorize a deposit against an external token contract
// (SPEC_FULL.md §4.K.1), grounded on
// original_source/zeropool-client/src/backend.rs.
package backend

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"
)

// SignFunc signs an arbitrary message and returns the raw signature bytes;
// callers supply this over whatever key-management scheme they use (local
// key, hardware wallet, remote signer).
type SignFunc func(message []byte) []byte

// Backend authorizes a deposit for one target chain's token contract.
type Backend interface {
	// SignDepositData produces the signed payload a relayer forwards on to
	// the chain's token contract to authorize pulling the deposit amount.
	SignDepositData(nullifier []byte, publicAddress string, depositID uint64, sign SignFunc) ([]byte, error)
}

// EVM implements the Backend contract for EVM chains: the signed message is
// ECDSA over keccak256(nullifier || token || depositID), matching
// backend.rs's EvmBackend.
type EVM struct {
	Token [20]byte
}

func (e EVM) SignDepositData(nullifier []byte, _ string, depositID uint64, sign SignFunc) ([]byte, error) {
	if len(nullifier) != 32 {
		return nil, xerrors.Errorf("backend: evm: nullifier must be 32 bytes, got %d", len(nullifier))
	}
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], depositID)

	h := sha3.NewLegacyKeccak256()
	h.Write(nullifier)
	h.Write(e.Token[:])
	h.Write(idBuf[:])
	digest := h.Sum(nil)

	return sign(digest), nil
}

// errNotImplemented is returned by backends whose wire framing was not
// present in the retrieved original_source; these three chains are named
// but their exact per-chain message encoding is not invented here.
func errNotImplemented(chain string) error {
	return xerrors.Errorf("backend: %s: deposit-signing framing not implemented for this backend", chain)
}

// Near is a named placeholder: backend.rs names a Near deposit-signing
// variant but its message framing is not present in the retrieved sources.
type Near struct{}

func (Near) SignDepositData([]byte, string, uint64, SignFunc) ([]byte, error) {
	return nil, errNotImplemented("near")
}

// Substrate is a named placeholder; see Near.
type Substrate struct{}

func (Substrate) SignDepositData([]byte, string, uint64, SignFunc) ([]byte, error) {
	return nil, errNotImplemented("substrate")
}

// Waves is a named placeholder; see Near.
type Waves struct{}

func (Waves) SignDepositData([]byte, string, uint64, SignFunc) ([]byte, error) {
	return nil, errNotImplemented("waves")
}

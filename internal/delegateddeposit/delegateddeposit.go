// Package delegateddeposit implements the magic-prefixed delegated-deposit
// memo variant (SPEC_FULL.md §4.I), grounded on
// original_source/libzeropool-rs/src/delegated_deposit.rs. A delegated
// deposit lets a custodian pre-fund a note on a user's behalf without the
// user needing to construct a transaction themselves.
package delegateddeposit

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

// Magic is the 4-byte prefix marking a memo as a delegated-deposit batch
// instead of a regular encrypted tx memo.
var Magic = [4]byte{0xff, 0xff, 0xff, 0xff}

// MaxDeposits bounds how many deposits a single delegated batch may carry
// (pool.DelegatedDepositsNum, 16); CommitHashes pads every batch to this
// many note leaves.
const MaxDeposits = pool.DelegatedDepositsNum

// ownerLen is fixed at EVM address width: the custodian fields this port
// targets are all EVM backends (SPEC_FULL.md §4.I, §4.K.1).
const ownerLen = 20

// fullSize is Magic's per-entry payload width: id(8) + owner(20) +
// receiver_d(10) + receiver_p(32) + denominated_amount(8) +
// denominated_fee(8) + expired(8).
const fullSize = 8 + ownerLen + 10 + 32 + 8 + 8 + 8

// FullDelegatedDeposit is one entry in a delegated-deposit batch memo.
type FullDelegatedDeposit struct {
	ID                 uint64
	Owner              [ownerLen]byte
	ReceiverD          poseidon.Fr
	ReceiverP          poseidon.Fr
	DenominatedAmount  uint64
	DenominatedFee     uint64
	Expired            uint64
}

// MarshalBinary is the fixed-width big-endian encoding used inside the
// magic-prefixed memo.
func (d FullDelegatedDeposit) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, fullSize)
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], d.ID)
	out = append(out, idBuf[:]...)
	out = append(out, d.Owner[:]...)
	out = append(out, beDiversifierBytes(d.ReceiverD)...)
	out = append(out, poseidon.Bytes(d.ReceiverP)...)

	var amountBuf, feeBuf, expiredBuf [8]byte
	binary.BigEndian.PutUint64(amountBuf[:], d.DenominatedAmount)
	binary.BigEndian.PutUint64(feeBuf[:], d.DenominatedFee)
	binary.BigEndian.PutUint64(expiredBuf[:], d.Expired)
	out = append(out, amountBuf[:]...)
	out = append(out, feeBuf[:]...)
	out = append(out, expiredBuf[:]...)
	return out, nil
}

// UnmarshalBinary parses the encoding produced by MarshalBinary.
func (d *FullDelegatedDeposit) UnmarshalBinary(data []byte) error {
	if len(data) != fullSize {
		return xerrors.Errorf("delegateddeposit: expected %d bytes, got %d", fullSize, len(data))
	}
	off := 0
	d.ID = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	copy(d.Owner[:], data[off:off+ownerLen])
	off += ownerLen
	d.ReceiverD = poseidon.FromBytesReduced(data[off : off+10])
	off += 10
	d.ReceiverP = poseidon.FromBytesReduced(data[off : off+32])
	off += 32
	d.DenominatedAmount = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	d.DenominatedFee = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	d.Expired = binary.BigEndian.Uint64(data[off : off+8])
	return nil
}

func beDiversifierBytes(d poseidon.Fr) []byte {
	be := poseidon.Bytes(d)
	return append([]byte{}, be[len(be)-10:]...)
}

// ToNote renders a delegated deposit as the plain note it commits to in
// the tree: d/p_d from the receiver fields, b the denominated amount, t
// zero (delegated deposits never carry an expiry-coupled timestamp on the
// note itself).
func (d FullDelegatedDeposit) ToNote() pool.Note {
	return pool.Note{
		D:  d.ReceiverD,
		PD: d.ReceiverP,
		B:  poseidon.FromUint64(d.DenominatedAmount),
		T:  poseidon.Zero(),
	}
}

// Data is the result of assembling a batch of delegated deposits into a
// tree-ready commitment and its memo bytes.
type Data struct {
	OutCommitmentHash poseidon.Fr
	Memo              []byte
	Hashes            []poseidon.Fr
}

// CommitHashes builds the full OUT+1-wide leaf run a delegated-deposit
// batch commits to the tree: the zero account's hash, each deposit's note
// hash padded to DelegatedDepositsNum entries, then zero-note hashes out to
// a full commitment slot. Both Create and the memo parser must derive the
// exact same run from a batch's deposits, matching out_hashes in
// original_source/libzeropool-rs/src/delegated_deposit.rs.
func CommitHashes(deposits []FullDelegatedDeposit) []poseidon.Fr {
	hashes := make([]poseidon.Fr, 0, pool.OutSlotSize)
	hashes = append(hashes, pool.ZeroAccount().Hash())
	for i := 0; i < MaxDeposits; i++ {
		var d FullDelegatedDeposit
		if i < len(deposits) {
			d = deposits[i]
		}
		hashes = append(hashes, d.ToNote().Hash())
	}
	zeroNoteHash := pool.ZeroNote().Hash()
	for len(hashes) < pool.OutSlotSize {
		hashes = append(hashes, zeroNoteHash)
	}
	return hashes
}

// Create validates and assembles a delegated-deposit batch. The wire memo
// carries accountHash as bookkeeping context for the caller (not part of
// the committed leaf run) followed by each real, unpadded deposit's
// fixed-width encoding (SPEC_FULL.md §4.I).
func Create(accountHash poseidon.Fr, deposits []FullDelegatedDeposit) (Data, error) {
	if len(deposits) == 0 || len(deposits) > MaxDeposits {
		return Data{}, xerrors.Errorf("delegateddeposit: batch size %d outside [1, %d]", len(deposits), MaxDeposits)
	}

	hashes := CommitHashes(deposits)

	memo := make([]byte, 0, 4+32+len(deposits)*fullSize)
	memo = append(memo, Magic[:]...)
	memo = append(memo, poseidon.Bytes(accountHash)...)
	for _, d := range deposits {
		encoded, err := d.MarshalBinary()
		if err != nil {
			return Data{}, err
		}
		memo = append(memo, encoded...)
	}

	commitment := poseidon.Hash(hashes...)

	return Data{
		OutCommitmentHash: commitment,
		Memo:              memo,
		Hashes:            hashes,
	}, nil
}

// IsDelegatedDepositMemo reports whether memo begins with the Magic
// prefix.
func IsDelegatedDepositMemo(memo []byte) bool {
	return len(memo) >= 4 && memo[0] == Magic[0] && memo[1] == Magic[1] && memo[2] == Magic[2] && memo[3] == Magic[3]
}

// ParseBatch decodes a magic-prefixed memo back into its account hash and
// deposit entries.
func ParseBatch(memo []byte) (accountHash poseidon.Fr, deposits []FullDelegatedDeposit, err error) {
	if !IsDelegatedDepositMemo(memo) {
		return accountHash, nil, xerrors.New("delegateddeposit: missing magic prefix")
	}
	if len(memo) < 4+32 {
		return accountHash, nil, xerrors.New("delegateddeposit: memo too short")
	}
	accountHash = poseidon.FromBytesReduced(memo[4:36])

	rest := memo[36:]
	if len(rest)%fullSize != 0 {
		return accountHash, nil, xerrors.Errorf("delegateddeposit: trailing %d bytes is not a multiple of entry size %d", len(rest), fullSize)
	}
	count := len(rest) / fullSize
	deposits = make([]FullDelegatedDeposit, count)
	for i := 0; i < count; i++ {
		if err := deposits[i].UnmarshalBinary(rest[i*fullSize : (i+1)*fullSize]); err != nil {
			return accountHash, nil, err
		}
	}
	return accountHash, deposits, nil
}

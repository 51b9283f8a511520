// Package memo implements encrypted memo parsing, including the
// magic-prefixed delegated-deposit variant (SPEC_FULL.md §4.H), grounded
// on
// original_source/libzeropool-rs-wasm/src/client/tx_parser.rs's parse_txs.
package memo

import (
	"encoding/binary"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/zeropool/zeropool-client-go/internal/cipher"
	"github.com/zeropool/zeropool-client-go/internal/delegateddeposit"
	"github.com/zeropool/zeropool-client-go/internal/keys"
	"github.com/zeropool/zeropool-client-go/internal/logging"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

// IndexedTx is one relayer-reported transaction awaiting decryption: its
// pool index, raw memo bytes, and the commitment it was recorded under.
type IndexedTx struct {
	Index      uint64
	Memo       []byte
	Commitment poseidon.Fr
}

// IndexedNote pairs a decoded note with its absolute pool index.
type IndexedNote struct {
	Index uint64
	Note  pool.Note
}

// DecMemo is everything ParseTxs could recover for one tx: an owned
// account snapshot (if this tx belongs to the caller), the notes owned by
// the caller (InNotes), every note decrypted on the sender side whether
// owned or not (OutNotes, set only alongside Account), and the index it
// was recorded at.
type DecMemo struct {
	Index    uint64
	Account  *pool.Account
	InNotes  []IndexedNote
	OutNotes []IndexedNote
}

// StateUpdate is the batch of facts ParseTxs learned that the caller
// should fold into its MerkleTree / State, independent of ownership: every
// observed tx contributes its leaf hashes (or, when only the commitment is
// known, just that).
type StateUpdate struct {
	NewLeafs       []LeafBatch
	NewCommitments []CommitmentEntry
}

// LeafBatch is a contiguous run of leaf hashes starting at Index.
type LeafBatch struct {
	Index  uint64
	Hashes []poseidon.Fr
}

// CommitmentEntry is a single aggregated commitment hash for a tx whose
// individual leaves were not decryptable by this caller.
type CommitmentEntry struct {
	Index uint64
	Hash  poseidon.Fr
}

// EncodeNormal builds a normal (non-delegated-deposit) memo: a
// little-endian u32 count followed by that many little-endian field
// elements, then the ciphertext.
func EncodeNormal(hashes []poseidon.Fr, ciphertext []byte) []byte {
	out := make([]byte, 0, 4+len(hashes)*32+len(ciphertext))
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(hashes)))
	out = append(out, countBuf[:]...)
	for _, h := range hashes {
		out = append(out, leFr(h)...)
	}
	out = append(out, ciphertext...)
	return out
}

func leFr(f poseidon.Fr) []byte {
	be := poseidon.Bytes(f)
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return le
}

func decodeHashesPrefix(memo []byte) (hashes []poseidon.Fr, rest []byte, err error) {
	if len(memo) < 4 {
		return nil, nil, xerrors.New("memo: too short for hash-count prefix")
	}
	count := binary.LittleEndian.Uint32(memo[0:4])
	body := memo[4:]
	if uint64(len(body)) < uint64(count)*32 {
		return nil, nil, xerrors.New("memo: truncated hash list")
	}
	hashes = make([]poseidon.Fr, count)
	for i := uint32(0); i < count; i++ {
		hashes[i] = poseidon.FromBytesReducedLE(body[i*32 : (i+1)*32])
	}
	return hashes, body[uint64(count)*32:], nil
}

// ParseTxs decrypts every tx in txs under the spending key sk, in
// parallel, returning per-tx decrypted memos (sorted by index) and a
// state update every caller -- owner or not -- should apply.
func ParseTxs(sk poseidon.Fr, txs []IndexedTx) ([]DecMemo, StateUpdate, error) {
	eta := keys.Derive(sk).Eta

	type perTx struct {
		memo   *DecMemo
		leaf   *LeafBatch
		commit *CommitmentEntry
	}
	results := make([]perTx, len(txs))

	g := new(errgroup.Group)
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			r, err := parseOne(eta, tx)
			if err != nil {
				logging.Named("memo").Debug("skipping undecodable tx", zap.Uint64("index", tx.Index), zap.Error(err))
				return nil
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, StateUpdate{}, err
	}

	var update StateUpdate
	var memos []DecMemo
	for _, r := range results {
		if r.memo != nil {
			memos = append(memos, *r.memo)
		}
		if r.leaf != nil {
			update.NewLeafs = append(update.NewLeafs, *r.leaf)
		}
		if r.commit != nil {
			update.NewCommitments = append(update.NewCommitments, *r.commit)
		}
	}
	sort.Slice(memos, func(i, j int) bool { return memos[i].Index < memos[j].Index })
	return memos, update, nil
}

func parseOne(eta poseidon.Fr, tx IndexedTx) (result struct {
	memo   *DecMemo
	leaf   *LeafBatch
	commit *CommitmentEntry
}, err error) {
	if delegateddeposit.IsDelegatedDepositMemo(tx.Memo) {
		_, deposits, err := delegateddeposit.ParseBatch(tx.Memo)
		if err != nil {
			return result, err
		}

		var inNotes []IndexedNote
		for i, d := range deposits {
			pd := keys.DerivePD(d.ReceiverD, eta)
			if poseidon.Eq(pd, d.ReceiverP) {
				inNotes = append(inNotes, IndexedNote{Index: tx.Index + 1 + uint64(i), Note: d.ToNote()})
			}
		}

		result.leaf = &LeafBatch{Index: tx.Index, Hashes: delegateddeposit.CommitHashes(deposits)}
		if len(inNotes) > 0 {
			result.memo = &DecMemo{Index: tx.Index, InNotes: inNotes}
		}
		return result, nil
	}

	hashes, ciphertext, err := decodeHashesPrefix(tx.Memo)
	if err != nil {
		return result, err
	}

	if account, notes, ok := cipher.DecryptOut(eta, ciphertext); ok {
		var inNotes, outNotes []IndexedNote
		for i, n := range notes {
			indexed := IndexedNote{Index: tx.Index + 1 + uint64(i), Note: n}
			outNotes = append(outNotes, indexed)
			if poseidon.Eq(keys.DerivePD(n.D, eta), n.PD) {
				inNotes = append(inNotes, indexed)
			}
		}
		result.memo = &DecMemo{Index: tx.Index, Account: &account, InNotes: inNotes, OutNotes: outNotes}
		result.leaf = &LeafBatch{Index: tx.Index, Hashes: hashes}
		return result, nil
	}

	var inNotes []IndexedNote
	for i, n := range cipher.DecryptIn(eta, ciphertext) {
		if n == nil {
			continue
		}
		if poseidon.Eq(keys.DerivePD(n.D, eta), n.PD) {
			inNotes = append(inNotes, IndexedNote{Index: tx.Index + 1 + uint64(i), Note: *n})
		}
	}
	if len(inNotes) > 0 {
		result.memo = &DecMemo{Index: tx.Index, InNotes: inNotes}
		result.leaf = &LeafBatch{Index: tx.Index, Hashes: hashes}
		return result, nil
	}

	result.commit = &CommitmentEntry{Index: tx.Index, Hash: tx.Commitment}
	return result, nil
}

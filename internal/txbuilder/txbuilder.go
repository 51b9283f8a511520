// Package txbuilder implements the pure (state-non-mutating) transaction
// assembly step (SPEC_FULL.md §4.G), grounded on
// original_source/zeropool-state/src/client/mod.rs's create_tx.
package txbuilder

import (
	"crypto/rand"
	"encoding/binary"

	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"

	"github.com/zeropool/zeropool-client-go/internal/address"
	"github.com/zeropool/zeropool-client-go/internal/cipher"
	"github.com/zeropool/zeropool-client-go/internal/keys"
	"github.com/zeropool/zeropool-client-go/internal/memo"
	"github.com/zeropool/zeropool-client-go/internal/merkletree"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

// Kind selects which tx-type preamble and delta rules create_tx applies.
type Kind int

const (
	KindTransfer Kind = iota
	KindDeposit
	KindDepositPermittable
	KindWithdraw
)

var (
	ErrTooManyInputs       = xerrors.New("txbuilder: too many input notes")
	ErrTooManyOutputs      = xerrors.New("txbuilder: too many output notes")
	ErrProofNotFound       = xerrors.New("txbuilder: merkle proof not found for a spent leaf")
	ErrAddressParse        = xerrors.New("txbuilder: could not parse an output address")
	ErrInsufficientBalance = xerrors.New("txbuilder: insufficient balance")
	ErrInsufficientEnergy  = xerrors.New("txbuilder: insufficient energy")
)

// Output is one requested payment: an address string and an amount.
type Output struct {
	To     string
	Amount uint64
}

// TxType carries the fields specific to one tx kind.
type TxType struct {
	Kind           Kind
	Fee            uint64
	DepositAmount  uint64 // Deposit, DepositPermittable
	Deadline       uint64 // DepositPermittable
	Holder         []byte // DepositPermittable
	WithdrawAmount uint64 // Withdraw
	NativeAmount   uint64 // Withdraw
	To             []byte // Withdraw: raw destination bytes
	EnergyAmount   uint64 // Withdraw
	Outputs        []Output
}

// InNote is an input note together with its absolute tree index.
type InNote struct {
	Index uint64
	Note  pool.Note
}

// StateFragment is the slice of client state create_tx needs: the
// account it will spend from (nil for a first tx), the notes it may
// spend, the pool tip index, and a tree reference for proof generation.
type StateFragment struct {
	Account      *pool.Account
	AccountIndex uint64
	InNotes      []InNote
	DeltaIndex   uint64
	Tree         *merkletree.MerkleTree
}

// Public is the circuit's public input tuple.
type Public struct {
	Root         poseidon.Fr
	Nullifier    poseidon.Fr
	OutCommit    poseidon.Fr
	Delta        poseidon.Fr
	MemoField    poseidon.Fr
}

// Secret is the circuit's private witness: the spent account/note hashes,
// their merkle proofs, and the eddsa-equivalent signature components.
type Secret struct {
	InAccountHash poseidon.Fr
	InputHashes   []poseidon.Fr
	InAccountProof merkletree.MerkleProof
	InNoteProofs  []merkletree.MerkleProof
	SigR          []byte
	SigS          []byte
	A             poseidon.Fr
}

// TransactionData is create_tx's full result.
type TransactionData struct {
	Public         Public
	Secret         Secret
	Ciphertext     []byte
	Memo           []byte
	ExtraData      []byte
	CommitmentRoot poseidon.Fr
	OutHashes      []poseidon.Fr
	OutAccount     pool.Account
	OutNotes       []pool.Note
}

const poolID = 0

func randomFr() (poseidon.Fr, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return poseidon.Fr{}, xerrors.Errorf("txbuilder: random field element: %w", err)
	}
	return poseidon.FromBytesReduced(buf[:]), nil
}

func makeDelta(deltaValue, deltaEnergy int64, deltaIndex uint64, poolID uint64) poseidon.Fr {
	return poseidon.Hash(
		poseidon.FromUint64(uint64(deltaValue)),
		poseidon.FromUint64(uint64(deltaEnergy)),
		poseidon.FromUint64(deltaIndex),
		poseidon.FromUint64(poolID),
	)
}

func outCommitmentHash(hashes []poseidon.Fr) poseidon.Fr {
	return poseidon.Hash(hashes...)
}

func txHash(inputHashes []poseidon.Fr, outCommit poseidon.Fr) poseidon.Fr {
	elems := append(append([]poseidon.Fr{}, inputHashes...), outCommit)
	return poseidon.Hash(elems...)
}

func nullifier(accountHash, eta poseidon.Fr, accountIndex uint64) poseidon.Fr {
	return poseidon.Hash(accountHash, eta, poseidon.FromUint64(accountIndex))
}

func preamble(t TxType) []byte {
	var feeBuf [8]byte
	binary.BigEndian.PutUint64(feeBuf[:], t.Fee)

	switch t.Kind {
	case KindDeposit:
		return feeBuf[:]
	case KindDepositPermittable:
		out := append([]byte{}, feeBuf[:]...)
		var deadlineBuf [8]byte
		binary.BigEndian.PutUint64(deadlineBuf[:], t.Deadline)
		out = append(out, deadlineBuf[:]...)
		out = append(out, t.Holder...)
		return out
	case KindWithdraw:
		out := append([]byte{}, feeBuf[:]...)
		var nativeBuf [8]byte
		binary.BigEndian.PutUint64(nativeBuf[:], t.NativeAmount)
		out = append(out, nativeBuf[:]...)
		out = append(out, t.To...)
		return out
	default: // Transfer
		return feeBuf[:]
	}
}

func memoFieldFromBytes(memoBytes []byte) poseidon.Fr {
	h := sha3.NewLegacyKeccak256()
	h.Write(memoBytes)
	return poseidon.FromBytesReduced(h.Sum(nil))
}

// Create assembles a complete, unproven transaction. It reads but never
// mutates state: every note hash it derives and every proof it fetches is
// read-only against the supplied StateFragment.
func Create(sk poseidon.Fr, codec address.Codec, t TxType, frag StateFragment) (TransactionData, error) {
	if len(frag.InNotes) > pool.In {
		return TransactionData{}, ErrTooManyInputs
	}
	if len(t.Outputs) >= pool.Out {
		return TransactionData{}, ErrTooManyOutputs
	}

	k := keys.Derive(sk)

	var inAccount pool.Account
	inAccountIndex := frag.AccountIndex
	isFirstTx := frag.Account == nil
	var inAccountProof merkletree.MerkleProof
	if isFirstTx {
		inAccount = pool.Account{
			D:  poseidon.FromUint64(poolID),
			PD: keys.DerivePD(poseidon.FromUint64(poolID), k.Eta),
			I:  poseidon.Zero(),
			B:  poseidon.Zero(),
			E:  poseidon.Zero(),
		}
		inAccountIndex = 0
	} else {
		inAccount = *frag.Account
		proof, ok := frag.Tree.GetLeafProof(inAccountIndex)
		if !ok {
			return TransactionData{}, ErrProofNotFound
		}
		inAccountProof = proof
	}

	var spendIntervalIndex uint64
	var inputValue, inputEnergy uint64
	inputValue = pool.Uint64(inAccount.B)
	if !isFirstTx {
		inputEnergy = pool.Uint64(inAccount.E) + pool.Uint64(inAccount.B)*(frag.DeltaIndex-pool.Uint64(inAccount.I))
	}
	inNoteProofs := make([]merkletree.MerkleProof, 0, len(frag.InNotes))
	for _, in := range frag.InNotes {
		inputValue += pool.Uint64(in.Note.B)
		inputEnergy += pool.Uint64(in.Note.B) * (frag.DeltaIndex - in.Index)
		proof, ok := frag.Tree.GetLeafProof(in.Index)
		if !ok {
			return TransactionData{}, ErrProofNotFound
		}
		inNoteProofs = append(inNoteProofs, proof)
		spendIntervalIndex = in.Index + 1
	}

	outNotes := make([]pool.Note, 0, pool.Out)
	var outputValue uint64
	for _, o := range t.Outputs {
		d, pd, err := codec.Parse(o.To)
		if err != nil {
			return TransactionData{}, xerrors.Errorf("%w: %s", ErrAddressParse, err)
		}
		outNotes = append(outNotes, pool.Note{
			D:  d,
			PD: pd,
			B:  pool.BoundedFromUint64(o.Amount),
			T:  poseidon.FromUint64(frag.DeltaIndex),
		})
		outputValue += o.Amount
	}
	numRealOutNotes := len(outNotes)
	for len(outNotes) < pool.Out {
		outNotes = append(outNotes, pool.ZeroNote())
	}

	var newBalance uint64
	var deltaValue, deltaEnergy int64
	switch t.Kind {
	case KindTransfer:
		if inputValue < outputValue+t.Fee {
			return TransactionData{}, ErrInsufficientBalance
		}
		newBalance = inputValue - outputValue - t.Fee
	case KindWithdraw:
		if t.EnergyAmount > inputEnergy {
			return TransactionData{}, ErrInsufficientEnergy
		}
		if t.WithdrawAmount > inputValue {
			return TransactionData{}, ErrInsufficientBalance
		}
		deltaValue = -int64(t.Fee) - int64(t.WithdrawAmount)
		deltaEnergy = -int64(t.EnergyAmount)
		if inputValue+uint64(deltaValue) < outputValue {
			return TransactionData{}, ErrInsufficientBalance
		}
		newBalance = inputValue + uint64(deltaValue) - outputValue
	default: // Deposit, DepositPermittable
		deltaValue = int64(t.DepositAmount) - int64(t.Fee)
		total := int64(inputValue) + deltaValue
		if total < int64(outputValue) {
			return TransactionData{}, ErrInsufficientBalance
		}
		newBalance = uint64(total) - outputValue
	}

	outD, err := randomFr()
	if err != nil {
		return TransactionData{}, err
	}
	outAccount := pool.Account{
		D:  outD,
		PD: keys.DerivePD(outD, k.Eta),
		I:  poseidon.FromUint64(spendIntervalIndex),
		B:  pool.BoundedFromUint64(newBalance),
		E:  pool.BoundedFromUint64(uint64(int64(inputEnergy) + deltaEnergy)),
	}

	entropy, err := cipher.NewEntropy()
	if err != nil {
		return TransactionData{}, err
	}
	ciphertext, err := cipher.Encrypt(entropy, k.Eta, outAccount, outNotes[:numRealOutNotes])
	if err != nil {
		return TransactionData{}, err
	}

	// Pad in_notes to IN with pseudo-owned zero-value notes so the proof
	// always carries exactly IN note slots (step 9).
	var padNotes []pool.Note
	for len(inNoteProofs) < pool.In {
		padD, err := randomFr()
		if err != nil {
			return TransactionData{}, err
		}
		padNotes = append(padNotes, pool.Note{D: padD, PD: keys.DerivePD(padD, k.Eta), B: poseidon.Zero(), T: poseidon.Zero()})
		inNoteProofs = append(inNoteProofs, frag.Tree.GetProofUnchecked(0, 0))
	}

	inAccountHash := inAccount.Hash()
	inputHashes := make([]poseidon.Fr, 0, pool.In+1)
	inputHashes = append(inputHashes, inAccountHash)
	for _, in := range frag.InNotes {
		inputHashes = append(inputHashes, in.Note.Hash())
	}
	for _, n := range padNotes {
		inputHashes = append(inputHashes, n.Hash())
	}

	outAccountHash := outAccount.Hash()
	outHashes := make([]poseidon.Fr, 0, pool.Out+1)
	outHashes = append(outHashes, outAccountHash)
	for _, n := range outNotes {
		outHashes = append(outHashes, n.Hash())
	}
	outCommit := outCommitmentHash(outHashes)
	th := txHash(inputHashes, outCommit)

	null := nullifier(inAccountHash, k.Eta, inAccountIndex)
	delta := makeDelta(deltaValue, deltaEnergy, frag.DeltaIndex, poolID)

	sig, err := keys.Sign(sk, poseidon.Bytes(th))
	if err != nil {
		return TransactionData{}, err
	}

	// The wire memo is the hash-count-prefixed leaf run (the OUT+1 hashes a
	// relayer/state.AddFullTx commits to the tree) followed by the
	// ciphertext; the tx-kind preamble (fee/deadline/holder/native_amount/
	// to) travels alongside as extra_data rather than inside the memo
	// itself (SPEC_FULL.md §4.G step 15, §4.K's extra_data_hex).
	memoBytes := memo.EncodeNormal(outHashes, ciphertext)
	memoField := memoFieldFromBytes(memoBytes)
	extraData := preamble(t)

	root := frag.Tree.GetRoot()

	return TransactionData{
		Public: Public{
			Root:      root,
			Nullifier: null,
			OutCommit: outCommit,
			Delta:     delta,
			MemoField: memoField,
		},
		Secret: Secret{
			InAccountHash:  inAccountHash,
			InputHashes:    inputHashes,
			InAccountProof: inAccountProof,
			InNoteProofs:   inNoteProofs,
			SigR:           sig.R,
			SigS:           sig.S,
			A:              k.A,
		},
		Ciphertext:     ciphertext,
		Memo:           memoBytes,
		ExtraData:      extraData,
		CommitmentRoot: outCommit,
		OutHashes:      outHashes,
		OutAccount:     outAccount,
		OutNotes:       outNotes[:numRealOutNotes],
	}, nil
}

// Package cipher implements the symmetric encryption layer wrapping each
// tx's account and output notes inside a memo (SPEC_FULL.md §4.H, §4.G).
// The call sites this is grounded on --
// original_source/libzeropool-rs-wasm/src/client/tx_parser.rs's
// cipher::decrypt_out/decrypt_in and
// original_source/zeropool-state/src/client/mod.rs's cipher::encrypt --
// only show the external contract, not native::cipher's own wire format
// (it lives outside the retrieved sources). This package reproduces that
// contract with its own concrete AEAD-based scheme: the account block is
// gated by the viewing key eta (only the account owner can open it, which
// is decrypt_out's job), while each note block uses a key derived from the
// public entropy and its slot index alone, since the sender never has the
// recipient's eta to gate it with -- ownership is established afterward by
// the caller comparing the decrypted note's (d, p_d) against
// keys.DerivePD, exactly as tx_parser.rs does for both decrypt_out and
// decrypt_in's results alike.
package cipher

import (
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/xerrors"

	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

const (
	entropyLen       = 16
	accountPlainLen  = 160
	accountSealedLen = accountPlainLen + chacha20poly1305.Overhead
	notePlainLen     = 128
	noteSealedLen    = notePlainLen + chacha20poly1305.Overhead
)

// NewEntropy returns fresh random entropy suitable for Encrypt.
func NewEntropy() ([]byte, error) {
	b := make([]byte, entropyLen)
	if _, err := rand.Read(b); err != nil {
		return nil, xerrors.Errorf("cipher: generate entropy: %w", err)
	}
	return b, nil
}

func deriveKey(entropy []byte, domain string, index int, eta *poseidon.Fr) []byte {
	entropyFr := poseidon.FromBytesReduced(entropy)
	domainFr := poseidon.FromBytesReduced([]byte(domain))
	indexFr := poseidon.FromUint64(uint64(index))
	elements := []poseidon.Fr{entropyFr, domainFr, indexFr}
	if eta != nil {
		elements = append(elements, *eta)
	}
	return poseidon.Bytes(poseidon.Hash(elements...))
}

func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, xerrors.Errorf("cipher: new aead: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, bool) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, false
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, false
	}
	return plain, true
}

// Encrypt seals account and notes into one ciphertext blob: entropy(16) ||
// sealed account(176) || sealed note(144) * len(notes).
func Encrypt(entropy []byte, eta poseidon.Fr, account pool.Account, notes []pool.Note) ([]byte, error) {
	if len(entropy) != entropyLen {
		return nil, xerrors.Errorf("cipher: encrypt: entropy must be %d bytes, got %d", entropyLen, len(entropy))
	}

	accountBytes, err := account.MarshalBinary()
	if err != nil {
		return nil, err
	}
	accountKey := deriveKey(entropy, "account", 0, &eta)
	sealedAccount, err := seal(accountKey, accountBytes)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, entropyLen+len(sealedAccount)+len(notes)*noteSealedLen)
	out = append(out, entropy...)
	out = append(out, sealedAccount...)

	for i, note := range notes {
		noteBytes, err := note.MarshalBinary()
		if err != nil {
			return nil, err
		}
		noteKey := deriveKey(entropy, "note", i, nil)
		sealedNote, err := seal(noteKey, noteBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, sealedNote...)
	}
	return out, nil
}

// DecryptOut attempts to open data as the account owner: it succeeds only
// if eta matches the eta used by Encrypt, and on success also decodes
// every note slot (their keys do not depend on eta, so they always decode
// once the account block is confirmed to belong to this ciphertext).
func DecryptOut(eta poseidon.Fr, data []byte) (pool.Account, []pool.Note, bool) {
	var zero pool.Account
	if len(data) < entropyLen+accountSealedLen {
		return zero, nil, false
	}
	entropy := data[:entropyLen]
	rest := data[entropyLen:]

	accountKey := deriveKey(entropy, "account", 0, &eta)
	plain, ok := open(accountKey, rest[:accountSealedLen])
	if !ok {
		return zero, nil, false
	}
	var account pool.Account
	if err := account.UnmarshalBinary(plain); err != nil {
		return zero, nil, false
	}

	noteBytes := rest[accountSealedLen:]
	numNotes := len(noteBytes) / noteSealedLen
	notes := make([]pool.Note, 0, numNotes)
	for i := 0; i < numNotes; i++ {
		sealed := noteBytes[i*noteSealedLen : (i+1)*noteSealedLen]
		notePlain, ok := open(deriveKey(entropy, "note", i, nil), sealed)
		if !ok {
			continue
		}
		var note pool.Note
		if err := note.UnmarshalBinary(notePlain); err != nil {
			continue
		}
		notes = append(notes, note)
	}
	return account, notes, true
}

// DecryptIn decrypts every note slot in data without needing eta to own
// the account, returning nil at a slot's position when it fails to
// decode. The caller is responsible for the ownership check (comparing
// the note's p_d against keys.DerivePD(d, eta)) since the note keys here
// carry no eta-dependent gating.
func DecryptIn(eta poseidon.Fr, data []byte) []*pool.Note {
	_ = eta // retained for call-site symmetry with DecryptOut; see package doc.
	if len(data) < entropyLen+accountSealedLen {
		return nil
	}
	entropy := data[:entropyLen]
	noteBytes := data[entropyLen+accountSealedLen:]
	numNotes := len(noteBytes) / noteSealedLen

	notes := make([]*pool.Note, numNotes)
	for i := 0; i < numNotes; i++ {
		sealed := noteBytes[i*noteSealedLen : (i+1)*noteSealedLen]
		plain, ok := open(deriveKey(entropy, "note", i, nil), sealed)
		if !ok {
			continue
		}
		var note pool.Note
		if err := note.UnmarshalBinary(plain); err != nil {
			continue
		}
		notes[i] = &note
	}
	return notes
}

package cipher

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

func TestEncryptDecryptOutRoundTrip(t *testing.T) {
	entropy, err := NewEntropy()
	require.NoError(t, err)

	eta := poseidon.FromUint64(99)
	account := pool.Account{D: poseidon.FromUint64(1), PD: poseidon.FromUint64(2), I: poseidon.FromUint64(3), B: poseidon.FromUint64(4), E: poseidon.FromUint64(5)}
	notes := []pool.Note{
		{D: poseidon.FromUint64(10), PD: poseidon.FromUint64(11), B: poseidon.FromUint64(12), T: poseidon.FromUint64(13)},
		{D: poseidon.FromUint64(20), PD: poseidon.FromUint64(21), B: poseidon.FromUint64(22), T: poseidon.FromUint64(23)},
	}

	data, err := Encrypt(entropy, eta, account, notes)
	require.NoError(t, err)

	gotAccount, gotNotes, ok := DecryptOut(eta, data)
	require.True(t, ok)
	require.True(t, poseidon.Eq(account.B, gotAccount.B))
	require.Len(t, gotNotes, 2)
	require.True(t, poseidon.Eq(notes[0].D, gotNotes[0].D))
	require.True(t, poseidon.Eq(notes[1].D, gotNotes[1].D))
}

func TestDecryptOutFailsForWrongEta(t *testing.T) {
	entropy, err := NewEntropy()
	require.NoError(t, err)

	data, err := Encrypt(entropy, poseidon.FromUint64(1), pool.Account{}, nil)
	require.NoError(t, err)

	_, _, ok := DecryptOut(poseidon.FromUint64(2), data)
	require.False(t, ok)
}

func TestDecryptInRecoversNoteFieldsWithoutOwnerEta(t *testing.T) {
	entropy, err := NewEntropy()
	require.NoError(t, err)

	notes := []pool.Note{
		{D: poseidon.FromUint64(30), PD: poseidon.FromUint64(31), B: poseidon.FromUint64(32), T: poseidon.FromUint64(33)},
	}
	data, err := Encrypt(entropy, poseidon.FromUint64(1), pool.Account{}, notes)
	require.NoError(t, err)

	recovered := DecryptIn(poseidon.FromUint64(999), data)
	require.Len(t, recovered, 1)
	require.NotNil(t, recovered[0])
	require.True(t, poseidon.Eq(notes[0].D, recovered[0].D))
}

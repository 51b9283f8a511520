package state

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeropool/zeropool-client-go/internal/kvstore"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

func newTestState(t *testing.T) *State {
	store := kvstore.NewMemory(5)
	s, err := New(store)
	require.NoError(t, err)
	return s
}

func fullSlotHashes(real ...poseidon.Fr) []poseidon.Fr {
	hashes := make([]poseidon.Fr, pool.OutSlotSize)
	for i, h := range real {
		hashes[i] = h
	}
	for i := len(real); i < pool.OutSlotSize; i++ {
		hashes[i] = pool.ZeroNote().Hash()
	}
	return hashes
}

func TestAddFullTxRecordsAccountAndNotes(t *testing.T) {
	s := newTestState(t)

	account := pool.Account{D: poseidon.FromUint64(1), PD: poseidon.FromUint64(2), I: poseidon.FromUint64(0), B: pool.BoundedFromUint64(500), E: poseidon.FromUint64(0)}
	note := pool.Note{D: poseidon.FromUint64(3), PD: poseidon.FromUint64(4), B: pool.BoundedFromUint64(100), T: poseidon.FromUint64(0)}

	hashes := fullSlotHashes(account.Hash(), note.Hash())
	require.NoError(t, s.AddFullTx(0, hashes, &account, []pool.Note{note}))

	gotAccount, idx, ok := s.LatestAccount()
	require.True(t, ok)
	require.EqualValues(t, 0, idx)
	require.True(t, poseidon.Eq(account.B, gotAccount.B))

	notes, err := s.UsableNotes()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.EqualValues(t, 1, notes[0].Index)

	total, err := s.TotalBalance()
	require.NoError(t, err)
	require.EqualValues(t, 600, total)
}

func TestAddNoteIsIdempotent(t *testing.T) {
	s := newTestState(t)
	note := pool.Note{D: poseidon.FromUint64(1), PD: poseidon.FromUint64(2), B: pool.BoundedFromUint64(10), T: poseidon.FromUint64(0)}

	require.NoError(t, s.AddNote(5, note))
	other := pool.Note{D: poseidon.FromUint64(9), PD: poseidon.FromUint64(9), B: pool.BoundedFromUint64(999), T: poseidon.FromUint64(0)}
	require.NoError(t, s.AddNote(5, other))

	notes, err := s.UsableNotes()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.True(t, poseidon.Eq(note.B, notes[0].Value.B))
}

func TestRollbackClearsAccountAndNotes(t *testing.T) {
	s := newTestState(t)
	account := pool.Account{B: pool.BoundedFromUint64(42)}
	hashes := fullSlotHashes(account.Hash())
	require.NoError(t, s.AddFullTx(0, hashes, &account, nil))

	require.NoError(t, s.Rollback(0))

	_, _, ok := s.LatestAccount()
	require.False(t, ok)
	require.EqualValues(t, 0, s.AccountBalance())
}

// Package state ties the Merkle tree and the sparse tx storage together
// into the client-local view of the pool (SPEC_FULL.md §4.F), grounded on
// original_source/libzkbob-rs/src/client/state.rs.
package state

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/zeropool/zeropool-client-go/internal/kvstore"
	"github.com/zeropool/zeropool-client-go/internal/merkletree"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
	"github.com/zeropool/zeropool-client-go/internal/sparsearray"
)

// TxCol is the KvStore column the tx storage's SparseArray is kept in.
const TxCol = 4

// State is the client-local, single-writer view of one account's pool
// state: the Merkle tree of all commitments, and the sparse storage of
// just this account's own account/note records.
type State struct {
	mu sync.RWMutex

	tree *merkletree.MerkleTree
	txs  *sparsearray.SparseArray[pool.TxRecord]

	latestAccount      pool.Account
	latestAccountIndex uint64
	haveAccount        bool
	latestNoteIndex    uint64
}

// New opens a State over store, rescanning its persisted tx storage to
// recover the latest account snapshot and note index.
func New(store kvstore.KvStore) (*State, error) {
	tree, err := merkletree.New(store)
	if err != nil {
		return nil, xerrors.Errorf("state: open tree: %w", err)
	}
	s := &State{
		tree: tree,
		txs:  sparsearray.New(store, TxCol, pool.TxRecordCodec{}),
	}
	if err := s.rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) rescan() error {
	entries, err := s.txs.Iter()
	if err != nil {
		return xerrors.Errorf("state: rescan: %w", err)
	}
	for _, e := range entries {
		switch e.Value.Kind {
		case pool.KindAccount:
			if !s.haveAccount || e.Index >= s.latestAccountIndex {
				s.latestAccount = e.Value.Account
				s.latestAccountIndex = e.Index
				s.haveAccount = true
			}
		case pool.KindNote:
			if e.Index > s.latestNoteIndex {
				s.latestNoteIndex = e.Index
			}
		}
	}
	return nil
}

// Tree exposes the underlying Merkle tree for proof generation.
func (s *State) Tree() *merkletree.MerkleTree {
	return s.tree
}

// AddHashes bulk-inserts a contiguous run of commitment leaves, e.g. ones
// reported by a relayer for txs not owned by this account. startIndex must
// be slot-aligned and the run a whole number of output slots.
func (s *State) AddHashes(startIndex uint64, hashes []poseidon.Fr) error {
	if startIndex%pool.OutSlotSize != 0 {
		return xerrors.Errorf("state: add_hashes: start index %d is not aligned to the output slot size %d", startIndex, pool.OutSlotSize)
	}
	if len(hashes)%pool.OutSlotSize != 0 {
		return xerrors.Errorf("state: add_hashes: length %d is not a multiple of the output slot size %d", len(hashes), pool.OutSlotSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.AddHashes(startIndex, hashes)
}

// AddFullTx records one of this account's own transactions: its leaf
// hashes in the tree, and its account/note records in tx storage. The tree
// write and the tx-storage writes are each committed atomically on their
// own; a crash between the two leaves the tree ahead of tx storage, which
// a future AddFullTx or rescan can always re-derive from relayer data,
// since the tree alone never determines account ownership.
func (s *State) AddFullTx(index uint64, hashes []poseidon.Fr, account *pool.Account, notes []pool.Note) error {
	if len(hashes)%pool.OutSlotSize != 0 {
		return xerrors.Errorf("state: add_full_tx: length %d is not a multiple of the output slot size %d", len(hashes), pool.OutSlotSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.AddHashes(index, hashes); err != nil {
		return xerrors.Errorf("state: add_full_tx: tree: %w", err)
	}

	records := make(map[uint64]pool.TxRecord)
	if account != nil {
		records[index] = pool.NewAccountRecord(*account)
		if !s.haveAccount || index >= s.latestAccountIndex {
			s.latestAccount = *account
			s.latestAccountIndex = index
			s.haveAccount = true
		}
	}
	for i, note := range notes {
		noteIndex := index + 1 + uint64(i)
		records[noteIndex] = pool.NewNoteRecord(note)
		if noteIndex > s.latestNoteIndex {
			s.latestNoteIndex = noteIndex
		}
	}
	if len(records) == 0 {
		return nil
	}
	if err := s.txs.SetMultiple(records); err != nil {
		return xerrors.Errorf("state: add_full_tx: tx storage: %w", err)
	}
	return nil
}

// AddAccount overwrites the locally tracked account snapshot if index is
// at or past the current latest.
func (s *State) AddAccount(index uint64, account pool.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveAccount && index < s.latestAccountIndex {
		return nil
	}
	if err := s.txs.Set(index, pool.NewAccountRecord(account)); err != nil {
		return err
	}
	s.latestAccount = account
	s.latestAccountIndex = index
	s.haveAccount = true
	return nil
}

// AddNote idempotently records a note at index: a repeated call with the
// same index is a no-op rather than an overwrite.
func (s *State) AddNote(index uint64, note pool.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok, err := s.txs.Get(index)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := s.txs.Set(index, pool.NewNoteRecord(note)); err != nil {
		return err
	}
	if index > s.latestNoteIndex {
		s.latestNoteIndex = index
	}
	return nil
}

// GetAllTxs returns every locally stored account/note record in ascending
// index order.
func (s *State) GetAllTxs() ([]sparsearray.Entry[pool.TxRecord], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.txs.Iter()
}

// EarliestUsableIndex returns the smallest tree index whose leaf is
// guaranteed to still be present, i.e. the tree's temp-leaf GC horizon.
func (s *State) EarliestUsableIndex() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.CleanIndex()
}

// LatestAccount returns the most recently observed account snapshot and
// its index.
func (s *State) LatestAccount() (pool.Account, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestAccount, s.latestAccountIndex, s.haveAccount
}

// TotalBalance is AccountBalance plus the balance field of every stored
// note at or past the latest account's spend-interval index (its i field),
// recomputed from scratch on each call rather than kept as a running
// counter (DESIGN.md decision 3).
func (s *State) TotalBalance() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.accountBalanceLocked()
	var from uint64
	if s.haveAccount {
		from = pool.Uint64(s.latestAccount.I)
	}
	entries, err := s.txs.Iter()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Value.Kind == pool.KindNote && e.Index >= from {
			total += pool.Uint64(e.Value.Note.B)
		}
	}
	return total, nil
}

// AccountBalance returns just the latest account snapshot's balance.
func (s *State) AccountBalance() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountBalanceLocked()
}

func (s *State) accountBalanceLocked() uint64 {
	if !s.haveAccount {
		return 0
	}
	return pool.Uint64(s.latestAccount.B)
}

// NoteBalance sums the balance field of every stored note.
func (s *State) NoteBalance() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.txs.Iter()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, e := range entries {
		if e.Value.Kind == pool.KindNote {
			total += pool.Uint64(e.Value.Note.B)
		}
	}
	return total, nil
}

// UsableNotes returns every stored note at or past both the tree's GC
// horizon and the latest account's spend-interval index, each paired with
// its pool index, in ascending order -- the set a TxBuilder call may spend
// as inputs.
func (s *State) UsableNotes() ([]sparsearray.Entry[pool.Note], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	horizon := s.tree.CleanIndex()
	if s.haveAccount && pool.Uint64(s.latestAccount.I) > horizon {
		horizon = pool.Uint64(s.latestAccount.I)
	}
	entries, err := s.txs.Iter()
	if err != nil {
		return nil, err
	}
	var notes []sparsearray.Entry[pool.Note]
	for _, e := range entries {
		if e.Value.Kind == pool.KindNote && e.Index >= horizon {
			notes = append(notes, sparsearray.Entry[pool.Note]{Index: e.Index, Value: e.Value.Note})
		}
	}
	return notes, nil
}

// Rollback discards tree leaves and tx records with index >= r.
func (s *State) Rollback(r uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.Rollback(r); err != nil {
		return xerrors.Errorf("state: rollback: tree: %w", err)
	}

	entries, err := s.txs.IterSlice(r, ^uint64(0))
	if err != nil {
		return xerrors.Errorf("state: rollback: tx storage scan: %w", err)
	}
	if len(entries) > 0 {
		indices := make([]uint64, len(entries))
		for i, e := range entries {
			indices[i] = e.Index
		}
		if err := s.txs.DeleteMultiple(indices); err != nil {
			return xerrors.Errorf("state: rollback: tx storage: %w", err)
		}
	}

	s.haveAccount = false
	s.latestAccount = pool.Account{}
	s.latestAccountIndex = 0
	s.latestNoteIndex = 0
	return s.rescan()
}

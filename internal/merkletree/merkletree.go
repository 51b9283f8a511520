// Package merkletree implements the append-only sparse Merkle tree at the
// core of the pool state (SPEC_FULL.md §4.C), grounded on
// original_source/libzkbob-rs/src/merkle.rs. Leaves are added strictly by
// increasing index; two precomputed padding-hash chains stand in for
// never-touched and committed-but-empty subtrees so the tree never has to
// materialize the full (1<<Height) leaf space.
package merkletree

import (
	"sync"

	"github.com/zeropool/zeropool-client-go/internal/kvstore"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
	"golang.org/x/xerrors"
)

// Height is the tree's fixed depth (SPEC_FULL.md §3).
const Height = pool.Height

// OutPlusOneLog is log2(Out+1) rounded up, the slot-alignment shift used by
// next_index bookkeeping (SPEC_FULL.md §4.C).
const OutPlusOneLog = pool.OutPlusOneLog

// MerkleTree is the append-only sparse Merkle tree over a KvStore.
type MerkleTree struct {
	store kvstore.KvStore

	// defaultHashes[h] is the root of an all-never-touched subtree of
	// height h. zeroNoteHashes[h] is the root of an all-committed-empty
	// subtree of height h. Both are doubling recurrences over Poseidon
	// and computed once per tree instance.
	defaultHashes  []poseidon.Fr
	zeroNoteHashes []poseidon.Fr

	mu        sync.RWMutex
	nextIndex uint64
}

// New opens a MerkleTree over store, loading next_index from disk if
// present.
func New(store kvstore.KvStore) (*MerkleTree, error) {
	t := &MerkleTree{store: store}
	t.defaultHashes = make([]poseidon.Fr, Height+1)
	t.zeroNoteHashes = make([]poseidon.Fr, Height+1)

	t.defaultHashes[0] = poseidon.Zero()
	t.zeroNoteHashes[0] = pool.ZeroNote().Hash()
	for h := 1; h <= Height; h++ {
		t.defaultHashes[h] = poseidon.Compress(t.defaultHashes[h-1], t.defaultHashes[h-1])
		t.zeroNoteHashes[h] = poseidon.Compress(t.zeroNoteHashes[h-1], t.zeroNoteHashes[h-1])
	}

	raw, err := store.Get(ColNextIndex, []byte(nextIndexName))
	if err != nil {
		return nil, xerrors.Errorf("merkletree: load next_index: %w", err)
	}
	if raw != nil {
		t.nextIndex = decodeU64(raw)
	}
	return t, nil
}

// NextIndex returns the first never-assigned leaf index.
func (t *MerkleTree) NextIndex() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextIndex
}

// get returns the hash at (h, i), falling back to the appropriate padding
// chain when the node was never explicitly stored. Callers must hold mu
// (read or write).
func (t *MerkleTree) get(h uint32, i uint64) poseidon.Fr {
	return t.getAt(h, i, t.nextIndex)
}

// getAt is get evaluated against an explicit next_index, used by the
// insertion walks so siblings read the padding chain of the advanced index.
func (t *MerkleTree) getAt(h uint32, i uint64, nextIndex uint64) poseidon.Fr {
	raw, err := t.store.Get(ColLeaves, nodeKey(h, i))
	if err == nil && raw != nil {
		return poseidon.FromBytesReduced(raw)
	}
	rightLeaf := (i + 1) << h
	if rightLeaf <= nextIndex {
		return t.zeroNoteHashes[h]
	}
	return t.defaultHashes[h]
}

// Get is the exported, lock-guarded form of get.
func (t *MerkleTree) Get(h uint32, i uint64) poseidon.Fr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.get(h, i)
}

// GetOpt returns the hash explicitly stored at (h, i), and false if the
// node was never written (regardless of what padding value Get would
// report for it).
func (t *MerkleTree) GetOpt(h uint32, i uint64) (poseidon.Fr, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	raw, err := t.store.Get(ColLeaves, nodeKey(h, i))
	if err != nil || raw == nil {
		return poseidon.Zero(), false
	}
	return poseidon.FromBytesReduced(raw), true
}

// GetRoot returns the hash at the tree's root.
func (t *MerkleTree) GetRoot() poseidon.Fr {
	return t.Get(Height, 0)
}

func (t *MerkleTree) tempCount(h uint32, i uint64) uint64 {
	raw, err := t.store.Get(ColTempLeaves, nodeKey(h, i))
	if err != nil || raw == nil {
		return 0
	}
	return decodeU64(raw)
}

func boolToCount(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// setNode stages a node write: the hash itself (or a delete, when it
// matches the height's zero-note padding value) plus its temp-leaf count.
func setNode(b kvstore.Batch, zeroAtHeight poseidon.Fr, h uint32, i uint64, hash poseidon.Fr, temp uint64) {
	key := nodeKey(h, i)
	if poseidon.Eq(hash, zeroAtHeight) {
		b.Delete(ColLeaves, key)
	} else {
		b.Put(ColLeaves, key, poseidon.Bytes(hash))
	}
	if temp == 0 {
		b.Delete(ColTempLeaves, key)
	} else {
		b.Put(ColTempLeaves, key, encodeU64(temp))
	}
}

func updateNextIndexFromNode(h uint32, i uint64) uint64 {
	leaf := (i+1)<<h - 1
	return ((leaf >> OutPlusOneLog) + 1) << OutPlusOneLog
}

// slotCeiling rounds endIndex up to the next output-slot boundary, the same
// bump update_next_index_from_node(0, start_index) performs in
// libzkbob-rs/src/merkle.rs. Used as the virtual-projection's updated-range
// upper bound so leaves inside the written slot but past the real data fall
// into the zero-note padding branch of getVirtualNodeFull, instead of the
// stale real-tree branch.
func slotCeiling(endIndex uint64) uint64 {
	if endIndex == 0 {
		return 0
	}
	return updateNextIndexFromNode(0, endIndex-1)
}

// AddHashAtHeight inserts a single hash at (h, i), walking the change up to
// the root in one atomic batch. temporary marks the leaf as GC-eligible
// (SPEC_FULL.md §4.C temp-leaf bookkeeping).
func (t *MerkleTree) AddHashAtHeight(h uint32, i uint64, hash poseidon.Fr, temporary bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	candidate := updateNextIndexFromNode(h, i)
	newNextIndex := t.nextIndex
	if candidate > newNextIndex {
		newNextIndex = candidate
	}

	if poseidon.Eq(hash, t.zeroNoteHashes[h]) && newNextIndex == t.nextIndex {
		return nil
	}

	batch := t.store.NewBatch()

	curH, curI, curHash, curTemp := h, i, hash, boolToCount(temporary)
	setNode(batch, t.zeroNoteHashes[curH], curH, curI, curHash, curTemp)

	for curH < Height {
		sibI := curI ^ 1
		sibHash := t.getAt(curH, sibI, newNextIndex)
		sibTemp := t.tempCount(curH, sibI)

		var left, right poseidon.Fr
		var leftTemp, rightTemp uint64
		if curI%2 == 0 {
			left, right = curHash, sibHash
			leftTemp, rightTemp = curTemp, sibTemp
		} else {
			left, right = sibHash, curHash
			leftTemp, rightTemp = sibTemp, curTemp
		}

		parentHash := poseidon.Compress(left, right)
		parentTemp := leftTemp + rightTemp

		curH, curI, curHash, curTemp = curH+1, curI>>1, parentHash, parentTemp
		setNode(batch, t.zeroNoteHashes[curH], curH, curI, curHash, curTemp)
	}

	batch.Put(ColNextIndex, []byte(nextIndexName), encodeU64(newNextIndex))

	if err := batch.Commit(); err != nil {
		return xerrors.Errorf("merkletree: add hash at height: %w", err)
	}
	t.nextIndex = newNextIndex
	return nil
}

// CommitBatchedHash is the batch-composable twin of AddHashAtHeight: it
// stages the same writes into a caller-supplied batch without committing,
// and returns the next_index value it staged alongside, so a caller can add
// writes of its own (e.g. sparsearray entries) to the same atomic commit.
// No caller in this module currently does so. The caller must call
// ConfirmNextIndex after a successful Commit.
func (t *MerkleTree) CommitBatchedHash(batch kvstore.Batch, h uint32, i uint64, hash poseidon.Fr, temporary bool) (newNextIndex uint64, noop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	candidate := updateNextIndexFromNode(h, i)
	newNextIndex = t.nextIndex
	if candidate > newNextIndex {
		newNextIndex = candidate
	}
	if poseidon.Eq(hash, t.zeroNoteHashes[h]) && newNextIndex == t.nextIndex {
		return t.nextIndex, true
	}

	curH, curI, curHash, curTemp := h, i, hash, boolToCount(temporary)
	setNode(batch, t.zeroNoteHashes[curH], curH, curI, curHash, curTemp)

	for curH < Height {
		sibI := curI ^ 1
		sibHash := t.getAt(curH, sibI, newNextIndex)
		sibTemp := t.tempCount(curH, sibI)

		var left, right poseidon.Fr
		var leftTemp, rightTemp uint64
		if curI%2 == 0 {
			left, right = curHash, sibHash
			leftTemp, rightTemp = curTemp, sibTemp
		} else {
			left, right = sibHash, curHash
			leftTemp, rightTemp = sibTemp, curTemp
		}

		parentHash := poseidon.Compress(left, right)
		parentTemp := leftTemp + rightTemp

		curH, curI, curHash, curTemp = curH+1, curI>>1, parentHash, parentTemp
		setNode(batch, t.zeroNoteHashes[curH], curH, curI, curHash, curTemp)
	}

	batch.Put(ColNextIndex, []byte(nextIndexName), encodeU64(newNextIndex))
	return newNextIndex, false
}

// ConfirmNextIndex updates the in-memory next_index cache after a caller
// has successfully committed a batch built with CommitBatchedHash.
func (t *MerkleTree) ConfirmNextIndex(newNextIndex uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if newNextIndex > t.nextIndex {
		t.nextIndex = newNextIndex
	}
}

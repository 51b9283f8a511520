package merkletree

import (
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
	"golang.org/x/xerrors"
)

// AddHashes bulk-inserts a contiguous run of leaves starting at startIndex
// in a single atomic batch, using the virtual-node projection to compute
// every touched ancestor without walking each leaf individually
// (SPEC_FULL.md §4.C add_hashes).
func (t *MerkleTree) AddHashes(startIndex uint64, hashes []poseidon.Fr) error {
	if len(hashes) == 0 {
		return nil
	}
	endIndex := startIndex + uint64(len(hashes))

	t.mu.Lock()
	defer t.mu.Unlock()

	if startIndex < t.nextIndex {
		return xerrors.Errorf("merkletree: add_hashes: start index %d precedes next_index %d", startIndex, t.nextIndex)
	}

	nodes := make(map[nodeCoord]poseidon.Fr, len(hashes)*2)
	for idx, hash := range hashes {
		leafIndex := startIndex + uint64(idx)
		if !poseidon.Eq(hash, t.zeroNoteHashes[0]) {
			nodes[nodeCoord{H: 0, I: leafIndex}] = hash
		}
	}
	candidate := updateNextIndexFromNode(0, endIndex-1)
	newNextIndex := t.nextIndex
	if candidate > newNextIndex {
		newNextIndex = candidate
	}

	bounds := virtualBounds{updatedLo: startIndex, updatedHi: slotCeiling(endIndex), newLo: startIndex, newHi: endIndex}
	t.getVirtualNodeFull(Height, 0, nodes, bounds)

	batch := t.store.NewBatch()
	for coord, hash := range nodes {
		setNode(batch, t.zeroNoteHashes[coord.H], coord.H, coord.I, hash, 0)
	}
	batch.Put(ColNextIndex, []byte(nextIndexName), encodeU64(newNextIndex))

	if err := batch.Commit(); err != nil {
		return xerrors.Errorf("merkletree: add_hashes: %w", err)
	}
	t.nextIndex = newNextIndex
	return nil
}

// PrecomputedNode is an already-known subtree hash at an arbitrary height,
// used by AddLeafsAndCommitments to splice in relayer-reported commitments
// for tx slots whose individual leaves are not locally known.
type PrecomputedNode struct {
	Height uint32
	Index  uint64
	Hash   poseidon.Fr
}

// AddLeafsAndCommitments bulk-inserts a mix of individual leaves and
// precomputed subtree commitments covering [startIndex, endIndex) in one
// atomic batch. Any sub-range not covered by either leaves or commitments
// resolves to the zero-note padding hash (SPEC_FULL.md §4.C
// add_leafs_and_commitments).
func (t *MerkleTree) AddLeafsAndCommitments(startIndex, endIndex uint64, leaves []poseidon.Fr, leavesStart uint64, commitments []PrecomputedNode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if startIndex < t.nextIndex {
		return xerrors.Errorf("merkletree: add_leafs_and_commitments: start index %d precedes next_index %d", startIndex, t.nextIndex)
	}

	nodes := make(map[nodeCoord]poseidon.Fr, len(leaves)+len(commitments))
	for idx, hash := range leaves {
		leafIndex := leavesStart + uint64(idx)
		if !poseidon.Eq(hash, t.zeroNoteHashes[0]) {
			nodes[nodeCoord{H: 0, I: leafIndex}] = hash
		}
	}
	for _, c := range commitments {
		nodes[nodeCoord{H: c.Height, I: c.Index}] = c.Hash
	}

	candidate := updateNextIndexFromNode(0, endIndex-1)
	newNextIndex := t.nextIndex
	if candidate > newNextIndex {
		newNextIndex = candidate
	}

	bounds := virtualBounds{updatedLo: startIndex, updatedHi: slotCeiling(endIndex), newLo: startIndex, newHi: endIndex}
	t.getVirtualNodeFull(Height, 0, nodes, bounds)

	batch := t.store.NewBatch()
	for coord, hash := range nodes {
		setNode(batch, t.zeroNoteHashes[coord.H], coord.H, coord.I, hash, 0)
	}
	batch.Put(ColNextIndex, []byte(nextIndexName), encodeU64(newNextIndex))

	if err := batch.Commit(); err != nil {
		return xerrors.Errorf("merkletree: add_leafs_and_commitments: %w", err)
	}
	t.nextIndex = newNextIndex
	return nil
}

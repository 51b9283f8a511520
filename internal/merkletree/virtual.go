package merkletree

import "github.com/zeropool/zeropool-client-go/internal/poseidon"

// virtualBounds describes the leaf-index window a bulk insertion covers.
// [updatedLo, updatedHi) is the full slot-aligned window being written;
// [newLo, newHi) is the sub-window that actually holds real data. A node
// that falls inside the updated window but outside the new-data window is
// virtual padding and resolves to the zero-note hash without recursing
// further (SPEC_FULL.md §4.C get_virtual_node_full).
type virtualBounds struct {
	updatedLo, updatedHi uint64
	newLo, newHi         uint64
}

// getVirtualNodeFull computes the hash at (h, i) as it would read after a
// hypothetical insertion described by nodes/bounds, without mutating the
// tree. Explicit leaf entries must already be memoized in nodes; internal
// nodes are memoized as they are computed.
func (t *MerkleTree) getVirtualNodeFull(h uint32, i uint64, nodes map[nodeCoord]poseidon.Fr, b virtualBounds) poseidon.Fr {
	if v, ok := nodes[nodeCoord{H: h, I: i}]; ok {
		return v
	}

	nodeLo := i << h
	nodeHi := (i + 1) << h

	if nodeHi <= b.updatedLo || b.updatedHi <= nodeLo {
		v := t.get(h, i)
		return v
	}

	if h == 0 {
		v := t.zeroNoteHashes[0]
		nodes[nodeCoord{H: h, I: i}] = v
		return v
	}

	if nodeHi <= b.newLo || b.newHi <= nodeLo {
		v := t.zeroNoteHashes[h]
		nodes[nodeCoord{H: h, I: i}] = v
		return v
	}

	left := t.getVirtualNodeFull(h-1, 2*i, nodes, b)
	right := t.getVirtualNodeFull(h-1, 2*i+1, nodes, b)
	v := poseidon.Compress(left, right)
	nodes[nodeCoord{H: h, I: i}] = v
	return v
}

// GetVirtualNode computes the hypothetical hash at (h, i) after inserting
// leaves (startIndex..startIndex+len(hashes)) without mutating the tree,
// used for proof generation ahead of commit (SPEC_FULL.md §4.C
// get_proof_after_virtual).
func (t *MerkleTree) GetVirtualNode(h uint32, i uint64, startIndex uint64, hashes []poseidon.Fr) poseidon.Fr {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nodes := make(map[nodeCoord]poseidon.Fr, len(hashes))
	lo, hi := startIndex, startIndex
	for idx, hash := range hashes {
		leafIndex := startIndex + uint64(idx)
		if !poseidon.Eq(hash, t.zeroNoteHashes[0]) {
			nodes[nodeCoord{H: 0, I: leafIndex}] = hash
		}
		hi = leafIndex + 1
	}
	b := virtualBounds{updatedLo: lo, updatedHi: slotCeiling(hi), newLo: lo, newHi: hi}
	return t.getVirtualNodeFull(h, i, nodes, b)
}

// GetProofAfterVirtual returns a Merkle proof (sibling hashes from leaf to
// root, and the corresponding left/right flags) for leaf index i as it
// would exist after hypothetically inserting hashes starting at
// startIndex, without mutating the tree.
func (t *MerkleTree) GetProofAfterVirtual(i uint64, startIndex uint64, hashes []poseidon.Fr) MerkleProof {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nodes := make(map[nodeCoord]poseidon.Fr, len(hashes))
	lo, hi := startIndex, startIndex
	for idx, hash := range hashes {
		leafIndex := startIndex + uint64(idx)
		if !poseidon.Eq(hash, t.zeroNoteHashes[0]) {
			nodes[nodeCoord{H: 0, I: leafIndex}] = hash
		}
		hi = leafIndex + 1
	}
	b := virtualBounds{updatedLo: lo, updatedHi: slotCeiling(hi), newLo: lo, newHi: hi}

	proof := MerkleProof{
		Siblings: make([]poseidon.Fr, Height),
		PathBits: make([]bool, Height),
	}
	curI := i
	for h := uint32(0); h < Height; h++ {
		sibI := curI ^ 1
		proof.Siblings[h] = t.getVirtualNodeFull(h, sibI, nodes, b)
		proof.PathBits[h] = curI%2 == 1
		curI >>= 1
	}
	return proof
}

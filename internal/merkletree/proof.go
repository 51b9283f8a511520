package merkletree

import "github.com/zeropool/zeropool-client-go/internal/poseidon"

// MerkleProof is a root-ward sibling path for one leaf: Siblings[h] is the
// sibling hash at height h, PathBits[h] is true when the leaf's ancestor at
// height h is the right child.
type MerkleProof struct {
	Siblings []poseidon.Fr
	PathBits []bool
}

// GetProofUnchecked returns the sibling path from (h, i) to the root,
// without verifying that a real leaf is stored there.
func (t *MerkleTree) GetProofUnchecked(h uint32, i uint64) MerkleProof {
	t.mu.RLock()
	defer t.mu.RUnlock()

	proof := MerkleProof{
		Siblings: make([]poseidon.Fr, Height-h),
		PathBits: make([]bool, Height-h),
	}
	curH, curI := h, i
	for k := 0; curH < Height; k++ {
		sibI := curI ^ 1
		proof.Siblings[k] = t.get(curH, sibI)
		proof.PathBits[k] = curI%2 == 1
		curH++
		curI >>= 1
	}
	return proof
}

// GetLeafProof returns the sibling path for leaf index i, or ok == false
// when no real leaf is stored there.
func (t *MerkleTree) GetLeafProof(i uint64) (proof MerkleProof, ok bool) {
	t.mu.RLock()
	raw, err := t.store.Get(ColLeaves, nodeKey(0, i))
	t.mu.RUnlock()
	if err != nil || raw == nil {
		return MerkleProof{}, false
	}
	return t.GetProofUnchecked(0, i), true
}

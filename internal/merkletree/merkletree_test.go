package merkletree

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeropool/zeropool-client-go/internal/kvstore"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

func newTestTree(t *testing.T) *MerkleTree {
	store := kvstore.NewMemory(4)
	tree, err := New(store)
	require.NoError(t, err)
	return tree
}

func TestEmptyTreeRootIsDefaultHash(t *testing.T) {
	tree := newTestTree(t)
	require.True(t, poseidon.Eq(tree.GetRoot(), tree.defaultHashes[Height]))
	require.EqualValues(t, 0, tree.NextIndex())
}

func TestAddHashAtHeightAdvancesNextIndex(t *testing.T) {
	tree := newTestTree(t)
	leaf := poseidon.FromUint64(42)

	err := tree.AddHashAtHeight(0, 0, leaf, false)
	require.NoError(t, err)
	require.EqualValues(t, 1<<OutPlusOneLog, tree.NextIndex())

	got, ok := tree.GetOpt(0, 0)
	require.True(t, ok)
	require.True(t, poseidon.Eq(got, leaf))
}

func TestAddHashesMatchesSequentialInsertion(t *testing.T) {
	sequential := newTestTree(t)
	bulk := newTestTree(t)

	hashes := make([]poseidon.Fr, 5)
	for i := range hashes {
		hashes[i] = poseidon.FromUint64(uint64(100 + i))
	}

	for i, h := range hashes {
		require.NoError(t, sequential.AddHashAtHeight(0, uint64(i), h, false))
	}
	require.NoError(t, bulk.AddHashes(0, hashes))

	require.True(t, poseidon.Eq(sequential.GetRoot(), bulk.GetRoot()))
	require.EqualValues(t, sequential.NextIndex(), bulk.NextIndex())
}

func TestRollbackRestoresPriorRoot(t *testing.T) {
	tree := newTestTree(t)

	first := poseidon.FromUint64(1)
	require.NoError(t, tree.AddHashAtHeight(0, 0, first, false))
	rootAfterFirst := tree.GetRoot()
	nextAfterFirst := tree.NextIndex()

	second := poseidon.FromUint64(2)
	require.NoError(t, tree.AddHashAtHeight(0, uint64(1)<<OutPlusOneLog, second, false))
	require.False(t, poseidon.Eq(tree.GetRoot(), rootAfterFirst))

	require.NoError(t, tree.Rollback(uint64(1)<<OutPlusOneLog))
	require.True(t, poseidon.Eq(tree.GetRoot(), rootAfterFirst))
	require.EqualValues(t, nextAfterFirst, tree.NextIndex())
}

func TestRollbackNoopWhenAtOrPastNextIndex(t *testing.T) {
	tree := newTestTree(t)
	require.NoError(t, tree.AddHashAtHeight(0, 0, poseidon.FromUint64(7), false))
	next := tree.NextIndex()

	require.NoError(t, tree.Rollback(next))
	require.EqualValues(t, next, tree.NextIndex())
}

func TestGetProofAfterVirtualMatchesRealProofOnceCommitted(t *testing.T) {
	tree := newTestTree(t)
	hashes := []poseidon.Fr{poseidon.FromUint64(1), poseidon.FromUint64(2), poseidon.FromUint64(3)}

	virtualProof := tree.GetProofAfterVirtual(1, 0, hashes)

	require.NoError(t, tree.AddHashes(0, hashes))
	realProof, ok := tree.GetLeafProof(1)
	require.True(t, ok)

	require.Equal(t, len(realProof.Siblings), len(virtualProof.Siblings))
	for i := range realProof.Siblings {
		require.True(t, poseidon.Eq(realProof.Siblings[i], virtualProof.Siblings[i]))
		require.Equal(t, realProof.PathBits[i], virtualProof.PathBits[i])
	}
}

func TestCleanBeforeIndexDropsFullyTemporarySubtreeChildren(t *testing.T) {
	tree := newTestTree(t)
	width := uint64(1) << OutPlusOneLog

	for i := uint64(0); i < width; i++ {
		require.NoError(t, tree.AddHashAtHeight(0, i, poseidon.FromUint64(200+i), true))
	}
	rootBeforeClean := tree.GetRoot()

	require.NoError(t, tree.CleanBeforeIndex(width))
	require.True(t, poseidon.Eq(tree.GetRoot(), rootBeforeClean))
	require.EqualValues(t, width, tree.CleanIndex())

	// Every fully-temporary node loses its immediate children, so the
	// top subtree's children are gone while its own root remains.
	_, ok := tree.GetOpt(OutPlusOneLog-1, 0)
	require.False(t, ok)
	require.True(t, poseidon.Eq(tree.GetRoot(), rootBeforeClean))
}

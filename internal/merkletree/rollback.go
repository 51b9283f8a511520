package merkletree

import (
	"github.com/zeropool/zeropool-client-go/internal/logging"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
	"golang.org/x/xerrors"
)

// Rollback discards every leaf with index >= r, restoring the tree to the
// state it had before those leaves were committed (SPEC_FULL.md §4.C
// rollback). Rolled-back leaves and their ancestors revert to the
// default-hash padding chain, since they are once again "never touched"
// rather than "committed empty". Rollback is a no-op if r is already at or
// beyond next_index.
func (t *MerkleTree) Rollback(r uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldNextIndex := t.nextIndex
	if r >= oldNextIndex {
		return nil
	}

	var newNextIndex uint64
	if r > 0 {
		newNextIndex = ((r-1)>>OutPlusOneLog + 1) << OutPlusOneLog
	}

	committed := false
	t.nextIndex = newNextIndex
	defer func() {
		if !committed {
			t.nextIndex = oldNextIndex
		}
	}()

	batch := t.store.NewBatch()
	for idx := oldNextIndex; idx > r; idx-- {
		leafIndex := idx - 1
		curH, curI, curHash, curTemp := uint32(0), leafIndex, t.defaultHashes[0], uint64(0)
		setNode(batch, t.zeroNoteHashes[curH], curH, curI, curHash, curTemp)

		for curH < Height {
			sibI := curI ^ 1
			sibHash := t.get(curH, sibI)
			sibTemp := t.tempCount(curH, sibI)

			var left, right = curHash, sibHash
			var leftTemp, rightTemp = curTemp, sibTemp
			if curI%2 != 0 {
				left, right = sibHash, curHash
				leftTemp, rightTemp = sibTemp, curTemp
			}

			parentHash := poseidon.Compress(left, right)
			parentTemp := leftTemp + rightTemp

			curH, curI, curHash, curTemp = curH+1, curI>>1, parentHash, parentTemp
			setNode(batch, t.zeroNoteHashes[curH], curH, curI, curHash, curTemp)
		}
	}

	batch.Put(ColNextIndex, []byte(nextIndexName), encodeU64(newNextIndex))
	if err := batch.Commit(); err != nil {
		return xerrors.Errorf("merkletree: rollback: %w", err)
	}
	committed = true
	logging.Named("merkletree").Sugar().Infof("rollback: next_index %d -> %d", oldNextIndex, newNextIndex)
	return nil
}

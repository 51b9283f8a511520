package merkletree

import (
	"golang.org/x/xerrors"

	"github.com/zeropool/zeropool-client-go/internal/logging"
)

// CleanBeforeIndex removes the stored children of any all-temporary
// subtree fully below limit, freeing space for leaves that can never be
// rolled back to anymore. Only the immediate children are dropped (not the
// whole subtree recursively): a shallow pass is preserved on purpose, since
// a rolled-forward limit invalidates stale temp_count bookkeeping for
// deeper descendants anyway (DESIGN.md decision 1).
func (t *MerkleTree) CleanBeforeIndex(limit uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	type victim struct {
		h uint32
		i uint64
	}
	var victims []victim

	// Every stored inner node is a GC candidate, at any height; leaves have
	// no children to drop. Each fully temporary candidate loses only its
	// two immediate children -- nothing below them is walked.
	err := t.store.Iterate(ColTempLeaves, nil, func(key, value []byte) bool {
		coord := parseNodeKey(key)
		if coord.H == 0 {
			return true
		}
		subtreeWidth := uint64(1) << coord.H
		subtreeHi := (coord.I + 1) * subtreeWidth
		if subtreeHi > limit {
			return true
		}
		count := decodeU64(value)
		if count != subtreeWidth {
			return true
		}
		victims = append(victims, victim{h: coord.H, i: coord.I})
		return true
	})
	if err != nil {
		return xerrors.Errorf("merkletree: clean_before_index: scan: %w", err)
	}

	batch := t.store.NewBatch()
	for _, v := range victims {
		leftH, leftI := v.h-1, 2*v.i
		rightH, rightI := v.h-1, 2*v.i+1
		batch.Delete(ColLeaves, nodeKey(leftH, leftI))
		batch.Delete(ColTempLeaves, nodeKey(leftH, leftI))
		batch.Delete(ColLeaves, nodeKey(rightH, rightI))
		batch.Delete(ColTempLeaves, nodeKey(rightH, rightI))
	}
	batch.Put(ColNamedIndex, []byte(cleanIndexName), encodeU64(limit))

	if err := batch.Commit(); err != nil {
		return xerrors.Errorf("merkletree: clean_before_index: %w", err)
	}
	if len(victims) > 0 {
		logging.Named("merkletree").Sugar().Debugf("clean_before_index: dropped %d subtree(s) below limit %d", len(victims), limit)
	}
	return nil
}

// CleanIndex returns the highest limit previously passed to
// CleanBeforeIndex, or 0 if it has never been called.
func (t *MerkleTree) CleanIndex() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	raw, err := t.store.Get(ColNamedIndex, []byte(cleanIndexName))
	if err != nil || raw == nil {
		return 0
	}
	return decodeU64(raw)
}

package kvstore

import (
	"bytes"

	"github.com/dgraph-io/badger/v2"
	"golang.org/x/xerrors"
)

// badgerStore is the disk-backed KvStore, grounded on the prefix-wrapped
// adaptor pattern in hive_adaptor/hiveadaptor.go: badger has no native
// column families, so each logical column is realised as a one-byte key
// prefix, matching common.MakeReaderPartition/MakeWriterPartition's
// "prefix byte" convention.
type badgerStore struct {
	db *badger.DB
}

// OpenBadger opens (creating if absent) a disk-backed KvStore at dir.
func OpenBadger(dir string) (KvStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, xerrors.Errorf("kvstore: open badger at %q: %w", dir, err)
	}
	return &badgerStore{db: db}, nil
}

func colKey(col int, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(col)
	copy(out[1:], key)
	return out
}

func (b *badgerStore) Get(col int, key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(colKey(col, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("kvstore: get: %w", err)
	}
	return out, nil
}

func (b *badgerStore) Has(col int, key []byte) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(colKey(col, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, xerrors.Errorf("kvstore: has: %w", err)
	}
	return found, nil
}

func (b *badgerStore) Iterate(col int, prefix []byte, fn func(key, value []byte) bool) error {
	fullPrefix := colKey(col, prefix)
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fullPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)[1:]
			var cont bool
			err := item.Value(func(v []byte) error {
				cont = fn(k, v)
				return nil
			})
			if err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
}

func (b *badgerStore) IterateRange(col int, start, end []byte, fn func(key, value []byte) bool) error {
	lo := colKey(col, start)
	var hi []byte
	if end != nil {
		hi = colKey(col, end)
	}
	colPrefix := []byte{byte(col)}
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = colPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(lo); it.ValidForPrefix(colPrefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			if hi != nil && bytes.Compare(k, hi) > 0 {
				break
			}
			var cont bool
			err := item.Value(func(v []byte) error {
				cont = fn(k[1:], v)
				return nil
			})
			if err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
}

func (b *badgerStore) NewBatch() Batch {
	return &badgerBatch{db: b.db, wb: b.db.NewWriteBatch()}
}

func (b *badgerStore) Close() error {
	return b.db.Close()
}

type badgerBatch struct {
	db  *badger.DB
	wb  *badger.WriteBatch
	err error
}

func (b *badgerBatch) Put(col int, key, value []byte) {
	if b.err != nil {
		return
	}
	b.err = b.wb.Set(colKey(col, key), value)
}

func (b *badgerBatch) Delete(col int, key []byte) {
	if b.err != nil {
		return
	}
	b.err = b.wb.Delete(colKey(col, key))
}

func (b *badgerBatch) Commit() error {
	if b.err != nil {
		b.wb.Cancel()
		return xerrors.Errorf("kvstore: batch: %w", b.err)
	}
	if err := b.wb.Flush(); err != nil {
		return xerrors.Errorf("kvstore: commit: %w", err)
	}
	return nil
}

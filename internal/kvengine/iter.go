package kvengine

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// First returns the smallest key in the store, or ok=false if the store
// is empty. It opens its own short-lived read transaction, matching the
// teacher's GetItemsWithPrefix pattern of scoping an iterator to one
// View call.
func (e *Engine) First() (key []byte, ok bool, err error) {
	err = e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}
		key = it.Item().KeyCopy(nil)
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("kvengine: first: %w", err)
	}
	return key, ok, nil
}

// Next requires last to exist and returns the next key in ascending
// order after it, or ok=false at end of store. Passing a key that is
// not present is a programming error and panics.
func (e *Engine) Next(last []byte) (key []byte, ok bool, err error) {
	if len(last) == 0 {
		panic("kvengine: Next called with empty last key")
	}
	err = e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(last)
		if !it.Valid() || !bytes.Equal(it.Item().Key(), last) {
			panic(fmt.Sprintf("kvengine: Next: key %x does not exist", last))
		}
		it.Next()
		if !it.Valid() {
			return nil
		}
		key = it.Item().KeyCopy(nil)
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("kvengine: next: %w", err)
	}
	return key, ok, nil
}

// Count returns the number of distinct keys in the store by walking
// every key without fetching values. Nothing in the module calls it;
// the sizes command walks keys through the scan manager instead.
func (e *Engine) Count() (int, error) {
	n := 0
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("kvengine: count: %w", err)
	}
	return n, nil
}

package kvengine

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Get reads the raw single value stored at key - used by stores that
// never need more than one value per key (source-id interning,
// source-data) and by GetFrames underneath the frame helpers.
func (t *Txn) Get(key []byte) ([]byte, bool, error) {
	item, err := t.btxn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvengine: get: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("kvengine: copy value: %w", err)
	}
	return val, true, nil
}

// Set writes key/value unconditionally.
func (t *Txn) Set(key, value []byte) error {
	if err := t.btxn.Set(key, value); err != nil {
		return fmt.Errorf("kvengine: set: %w", err)
	}
	return nil
}

// Delete removes key entirely.
func (t *Txn) Delete(key []byte) error {
	if err := t.btxn.Delete(key); err != nil {
		return fmt.Errorf("kvengine: delete: %w", err)
	}
	return nil
}

// Exists reports whether key is present, without copying its value.
func (t *Txn) Exists(key []byte) (bool, error) {
	_, err := t.btxn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kvengine: exists: %w", err)
	}
	return true, nil
}

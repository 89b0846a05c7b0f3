// Package sourceid implements the source-id interning store: a
// bijection between a file hash and a dense uint64 source id, assigned
// by a monotone counter kept at a reserved key inside the same Badger
// environment.
package sourceid

import (
	"fmt"

	"github.com/i5heu/blockhashdb/internal/codec"
	"github.com/i5heu/blockhashdb/internal/counters"
	"github.com/i5heu/blockhashdb/internal/kvengine"
)

// counterKey is the single byte 0x00; every other key in this store
// starts with forwardPrefix or reversePrefix, so it can never collide
// with one.
var counterKey = []byte{0x00}

const forwardPrefix = 0x01 // FH -> SID
const reversePrefix = 0x02 // SID -> FH

// Store is the source-id interning store.
type Store struct {
	eng *kvengine.Engine
}

// Open wraps an already-open engine as a source-id store.
func Open(eng *kvengine.Engine) *Store {
	return &Store{eng: eng}
}

// Close releases the underlying engine.
func (s *Store) Close() error { return s.eng.Close() }

func forwardKey(fh []byte) []byte {
	return append([]byte{forwardPrefix}, fh...)
}

func reverseKey(sid uint64) []byte {
	return codec.PutUvarint([]byte{reversePrefix}, sid)
}

// InternFileHash resolves fh to its source id, assigning a new dense id
// on first observation. Idempotent: a file hash seen before always
// yields the same id.
func (s *Store) InternFileHash(fh []byte, t *counters.Tally) (uint64, error) {
	var sid uint64
	err := s.eng.Update(func(txn *kvengine.Txn) error {
		key := forwardKey(fh)
		raw, ok, err := txn.Get(key)
		if err != nil {
			return err
		}
		if ok {
			existing, _, err := codec.Uvarint(raw)
			if err != nil {
				return fmt.Errorf("sourceid: corrupt forward entry: %w", err)
			}
			sid = existing
			t.SourceIDAlreadyKnown++
			return nil
		}

		next, err := s.nextCounter(txn)
		if err != nil {
			return err
		}
		if err := txn.Set(key, codec.PutUvarint(nil, next)); err != nil {
			return err
		}
		if err := txn.Set(reverseKey(next), fh); err != nil {
			return err
		}
		sid = next
		t.SourceIDInterned++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sourceid: intern: %w", err)
	}
	return sid, nil
}

func (s *Store) nextCounter(txn *kvengine.Txn) (uint64, error) {
	raw, ok, err := txn.Get(counterKey)
	if err != nil {
		return 0, err
	}
	var cur uint64
	if ok {
		cur, _, err = codec.Uvarint(raw)
		if err != nil {
			return 0, fmt.Errorf("sourceid: corrupt counter: %w", err)
		}
	}
	next := cur + 1
	if err := txn.Set(counterKey, codec.PutUvarint(nil, next)); err != nil {
		return 0, err
	}
	return next, nil
}

// MaxSID returns the highest source id assigned so far. found is false
// if no source has ever been interned.
func (s *Store) MaxSID() (sid uint64, found bool, err error) {
	err = s.eng.View(func(txn *kvengine.Txn) error {
		raw, ok, err := txn.Get(counterKey)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		v, _, err := codec.Uvarint(raw)
		if err != nil {
			return fmt.Errorf("sourceid: corrupt counter: %w", err)
		}
		sid, found = v, true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("sourceid: max sid: %w", err)
	}
	return sid, found, nil
}

// FileHashOf resolves a source id back to its file hash.
func (s *Store) FileHashOf(sid uint64) (fh []byte, found bool, err error) {
	err = s.eng.View(func(txn *kvengine.Txn) error {
		v, ok, err := txn.Get(reverseKey(sid))
		if err != nil {
			return err
		}
		found = ok
		fh = v
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("sourceid: file hash of: %w", err)
	}
	return fh, found, nil
}

// Package hashindex implements the hash-prefix negative filter (spec
// §4.4): an auxiliary store keyed by a prefix of a block hash, used to
// shortcut definite absence before paying for a hash-data store lookup.
// It is not authoritative - a positive result still requires confirming
// against internal/hashdata.
package hashindex

import (
	"fmt"

	"github.com/i5heu/blockhashdb/internal/kvengine"
)

// Index is the hash-prefix store, keyed by the first PrefixBits of a
// hash (padded to a byte boundary), with one frame per known hash
// sharing that prefix holding its last SuffixBytes.
type Index struct {
	eng        *kvengine.Engine
	PrefixBits int
	SuffixBytes int
}

// Open wraps an already-open engine as a hash-prefix index.
func Open(eng *kvengine.Engine, prefixBits, suffixBytes int) *Index {
	return &Index{eng: eng, PrefixBits: prefixBits, SuffixBytes: suffixBytes}
}

// Close releases the underlying engine.
func (x *Index) Close() error { return x.eng.Close() }

func (x *Index) prefixKey(h []byte) []byte {
	n := (x.PrefixBits + 7) / 8
	if n > len(h) {
		n = len(h)
	}
	return h[:n:n]
}

func (x *Index) suffix(h []byte) []byte {
	n := x.SuffixBytes
	if n > len(h) {
		n = len(h)
	}
	return h[len(h)-n:]
}

// Add records that h is present, so future MaybePresent calls against
// its prefix return a candidate. It is idempotent.
func (x *Index) Add(h []byte) error {
	key := x.prefixKey(h)
	suf := x.suffix(h)
	err := x.eng.Update(func(txn *kvengine.Txn) error {
		_, err := txn.PutFrameNoDup(key, suf)
		return err
	})
	if err != nil {
		return fmt.Errorf("hashindex: add: %w", err)
	}
	return nil
}

// MaybePresent returns true if some hash sharing h's prefix and matching
// h's suffix was ever added - a necessary but not sufficient condition
// for h's presence in the hash-data store. A false result is authoritative:
// h is definitely absent.
func (x *Index) MaybePresent(h []byte) (bool, error) {
	key := x.prefixKey(h)
	want := x.suffix(h)
	found := false
	err := x.eng.View(func(txn *kvengine.Txn) error {
		frames, ok, err := txn.GetFrames(key)
		if err != nil || !ok {
			return err
		}
		for _, f := range frames {
			if string(f) == string(want) {
				found = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("hashindex: maybe present: %w", err)
	}
	return found, nil
}

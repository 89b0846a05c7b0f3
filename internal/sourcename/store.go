// Package sourcename implements the source-name store: a multi-valued
// map from source id to the set of (repository, filename) pairs it has
// been observed under.
package sourcename

import (
	"fmt"

	"github.com/i5heu/blockhashdb/internal/codec"
	"github.com/i5heu/blockhashdb/internal/counters"
	"github.com/i5heu/blockhashdb/internal/kvengine"
)

// Name is one (repository, filename) observation.
type Name struct {
	Repository string
	Filename   string
}

// Store is the source-name store.
type Store struct {
	eng *kvengine.Engine
}

// Open wraps an already-open engine as a source-name store.
func Open(eng *kvengine.Engine) *Store { return &Store{eng: eng} }

// Close releases the underlying engine.
func (s *Store) Close() error { return s.eng.Close() }

func key(sid uint64) []byte { return codec.PutUvarint(nil, sid) }

// Add records that sid has been seen under (repository, filename). Set
// semantics: a repeat of the same pair is a no-op.
func (s *Store) Add(sid uint64, repository, filename string, t *counters.Tally) error {
	frame := codec.EncodeStringPair(repository, filename)
	err := s.eng.Update(func(txn *kvengine.Txn) error {
		inserted, err := txn.PutFrameNoDup(key(sid), frame)
		if err != nil {
			return err
		}
		if inserted {
			t.SourceNameInserted++
		} else {
			t.SourceNameAlreadyKnown++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sourcename: add: %w", err)
	}
	return nil
}

// Find returns every (repository, filename) pair observed for sid.
func (s *Store) Find(sid uint64) ([]Name, error) {
	var names []Name
	err := s.eng.View(func(txn *kvengine.Txn) error {
		frames, ok, ferr := txn.GetFrames(key(sid))
		if ferr != nil || !ok {
			return ferr
		}
		for _, f := range frames {
			repo, file, ok := codec.DecodeStringPair(f)
			if !ok {
				return fmt.Errorf("sourcename: corrupt name frame for sid %d", sid)
			}
			names = append(names, Name{Repository: repo, Filename: file})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sourcename: find: %w", err)
	}
	return names, nil
}

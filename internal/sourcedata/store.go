// Package sourcedata implements the source-data store: the per-source
// tuple (filesize, file type, nonprobative count), keyed by source id.
package sourcedata

import (
	"fmt"

	"github.com/i5heu/blockhashdb/internal/codec"
	"github.com/i5heu/blockhashdb/internal/counters"
	"github.com/i5heu/blockhashdb/internal/kvengine"
)

// Tuple is the per-source metadata.
type Tuple struct {
	Filesize          uint64
	FileType          string
	NonprobativeCount uint64
}

func (t Tuple) equal(o Tuple) bool {
	return t.Filesize == o.Filesize && t.NonprobativeCount == o.NonprobativeCount && t.FileType == o.FileType
}

func encode(t Tuple) []byte {
	b := codec.PutUvarint(nil, t.Filesize)
	b = codec.PutUvarint(b, t.NonprobativeCount)
	b = codec.PutUvarint(b, uint64(len(t.FileType)))
	b = append(b, t.FileType...)
	return b
}

func decode(b []byte) (Tuple, error) {
	filesize, n1, err := codec.Uvarint(b)
	if err != nil {
		return Tuple{}, fmt.Errorf("sourcedata: decode filesize: %w", err)
	}
	b = b[n1:]
	nonprobative, n2, err := codec.Uvarint(b)
	if err != nil {
		return Tuple{}, fmt.Errorf("sourcedata: decode nonprobative: %w", err)
	}
	b = b[n2:]
	typeLen, n3, err := codec.Uvarint(b)
	if err != nil {
		return Tuple{}, fmt.Errorf("sourcedata: decode file type length: %w", err)
	}
	b = b[n3:]
	if uint64(len(b)) < typeLen {
		return Tuple{}, fmt.Errorf("sourcedata: truncated file type")
	}
	return Tuple{Filesize: filesize, NonprobativeCount: nonprobative, FileType: string(b[:typeLen])}, nil
}

// Store is the source-data store.
type Store struct {
	eng *kvengine.Engine
}

// Open wraps an already-open engine as a source-data store.
func Open(eng *kvengine.Engine) *Store { return &Store{eng: eng} }

// Close releases the underlying engine.
func (s *Store) Close() error { return s.eng.Close() }

func key(sid uint64) []byte { return codec.PutUvarint(nil, sid) }

// Put stores (or updates) the tuple for sid. Repeated inserts with an
// equal tuple are no-ops; a changed tuple overwrites and tallies
// source_data_changed.
func (s *Store) Put(sid uint64, tup Tuple, t *counters.Tally) error {
	err := s.eng.Update(func(txn *kvengine.Txn) error {
		k := key(sid)
		raw, ok, err := txn.Get(k)
		if err != nil {
			return err
		}
		if ok {
			existing, err := decode(raw)
			if err != nil {
				return err
			}
			if existing.equal(tup) {
				t.SourceDataSame++
				return nil
			}
			t.SourceDataChanged++
		}
		return txn.Set(k, encode(tup))
	})
	if err != nil {
		return fmt.Errorf("sourcedata: put: %w", err)
	}
	return nil
}

// Find returns the tuple stored for sid.
func (s *Store) Find(sid uint64) (tup Tuple, found bool, err error) {
	err = s.eng.View(func(txn *kvengine.Txn) error {
		raw, ok, gerr := txn.Get(key(sid))
		if gerr != nil {
			return gerr
		}
		if !ok {
			return nil
		}
		decoded, derr := decode(raw)
		if derr != nil {
			return derr
		}
		tup = decoded
		found = true
		return nil
	})
	if err != nil {
		return Tuple{}, false, fmt.Errorf("sourcedata: find: %w", err)
	}
	return tup, found, nil
}

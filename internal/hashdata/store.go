// Package hashdata implements the hash-data store, the core of the
// database. A block hash H maps to per-hash metadata plus a capped set
// of (source id, file offset) references, packed into one run of
// records under one key via three record shapes (record.go). This file
// implements the upsert state machine, lookups, and ordered iteration.
package hashdata

import (
	"fmt"
	"sort"

	"github.com/i5heu/blockhashdb/internal/counters"
	"github.com/i5heu/blockhashdb/internal/kvengine"
)

// Store is the hash-data store. MaxSourceRefs is
// max_source_offset_pairs (0 = unbounded); SectorSize divides every
// incoming file offset, and a non-multiple offset is rejected.
type Store struct {
	eng           *kvengine.Engine
	MaxSourceRefs uint64
	SectorSize    uint64
}

// Open wraps an already-open engine as a hash-data store.
func Open(eng *kvengine.Engine, maxSourceRefs, sectorSize uint64) *Store {
	return &Store{eng: eng, MaxSourceRefs: maxSourceRefs, SectorSize: sectorSize}
}

// Close releases the underlying engine.
func (s *Store) Close() error { return s.eng.Close() }

// Insert upserts one (H, SID, FO) observation with accompanying
// metadata. It returns the resulting source reference count for H (0
// if the offset was rejected) and tallies the outcome into t.
//
// Preconditions enforced as programming errors (panic): len(h) > 0,
// sid >= 1.
func (s *Store) Insert(h []byte, sid uint64, fo uint64, entropy uint64, label []byte, t *counters.Tally) (int, error) {
	if len(h) == 0 {
		panic("hashdata: Insert called with empty hash")
	}
	if sid == 0 {
		panic("hashdata: Insert called with sentinel SID 0")
	}

	if s.SectorSize != 0 && fo%s.SectorSize != 0 {
		t.HashDataInvalidFileOffset++
		return 0, nil
	}
	offset := fo
	if s.SectorSize != 0 {
		offset = fo / s.SectorSize
	}
	newRef := SourceRef{SID: sid, Offset: offset}
	newMeta := Meta{Entropy: entropy, Label: label}

	var result int
	err := s.eng.Update(func(txn *kvengine.Txn) error {
		frames, present, err := txn.GetFrames(h)
		if err != nil {
			return err
		}
		if !present {
			if err := txn.SetFrames(h, [][]byte{encodeType1(newRef, newMeta)}); err != nil {
				return err
			}
			t.DataInserted++
			t.SourceInserted++
			result = 1
			return nil
		}

		if !isType2Frame(frames[0]) {
			return s.insertIntoType1(txn, h, frames[0], newRef, newMeta, t, &result)
		}
		return s.insertIntoType2(txn, h, frames, newRef, newMeta, t, &result)
	})
	if err != nil {
		return 0, fmt.Errorf("hashdata: insert: %w", err)
	}
	return result, nil
}

func (s *Store) atMax(count uint64) bool {
	return s.MaxSourceRefs != 0 && count >= s.MaxSourceRefs
}

func (s *Store) insertIntoType1(txn *kvengine.Txn, h []byte, frame []byte, newRef SourceRef, newMeta Meta, t *counters.Tally, result *int) error {
	oldRef, oldMeta, err := decodeType1(frame)
	if err != nil {
		return err
	}

	sourceSame := newRef == oldRef
	dataSame := newMeta.Equal(oldMeta)
	// With cap==1 a lone Type 1 record already counts as at-max, so it
	// is never promoted to Type 2 even when offered a genuinely distinct
	// source.
	atMax := s.atMax(1)

	if dataSame {
		t.DataSame++
	} else {
		t.DataChanged++
	}

	if sourceSame || atMax {
		if sourceSame {
			t.SourceAlreadyPresent++
		} else {
			t.SourceAtMax++
		}
		if dataSame {
			*result = 1
			return nil
		}
		if err := txn.SetFrames(h, [][]byte{encodeType1(oldRef, newMeta)}); err != nil {
			return err
		}
		*result = 1
		return nil
	}

	t.SourceInserted++
	if err := txn.SetFrames(h, [][]byte{
		encodeType2(newMeta),
		encodeType3(oldRef),
		encodeType3(newRef),
	}); err != nil {
		return err
	}
	*result = 2
	return nil
}

func (s *Store) insertIntoType2(txn *kvengine.Txn, h []byte, frames [][]byte, newRef SourceRef, newMeta Meta, t *counters.Tally, result *int) error {
	oldMeta, err := decodeType2(frames[0])
	if err != nil {
		return err
	}
	count := uint64(len(frames) - 1)

	if !oldMeta.Equal(newMeta) {
		frames = append([][]byte{encodeType2(newMeta)}, frames[1:]...)
		if err := txn.SetFrames(h, frames); err != nil {
			return err
		}
		t.DataChanged++
	} else {
		t.DataSame++
	}

	if s.atMax(count) {
		t.SourceAtMax++
		*result = int(count)
		return nil
	}

	inserted, err := txn.PutFrameNoDup(h, encodeType3(newRef))
	if err != nil {
		return err
	}
	if inserted {
		t.SourceInserted++
		count++
	} else {
		t.SourceAlreadyPresent++
	}
	*result = int(count)
	return nil
}

// Find returns a hash's metadata and its full set of source references,
// or found=false if H is not present.
func (s *Store) Find(h []byte) (meta Meta, refs []SourceRef, found bool, err error) {
	err = s.eng.View(func(txn *kvengine.Txn) error {
		frames, present, ferr := txn.GetFrames(h)
		if ferr != nil {
			return ferr
		}
		if !present {
			return nil
		}
		found = true

		if !isType2Frame(frames[0]) {
			ref, m, derr := decodeType1(frames[0])
			if derr != nil {
				return derr
			}
			meta = m
			refs = []SourceRef{ref}
			return nil
		}

		m, derr := decodeType2(frames[0])
		if derr != nil {
			return derr
		}
		meta = m
		refs = make([]SourceRef, 0, len(frames)-1)
		for _, f := range frames[1:] {
			ref, derr := decodeType3(f)
			if derr != nil {
				return derr
			}
			refs = append(refs, ref)
		}
		return nil
	})
	if err != nil {
		return Meta{}, nil, false, fmt.Errorf("hashdata: find: %w", err)
	}
	return meta, refs, found, nil
}

// FindCount returns |S(H)| without decoding metadata or references. A
// Type 2 key with exactly one frame after the header
// (i.e. find_count would be 1) is a corrupt store, since Type 2 is only
// ever written alongside two or more Type 3 records; that case panics.
func (s *Store) FindCount(h []byte) (int, error) {
	var count int
	err := s.eng.View(func(txn *kvengine.Txn) error {
		frames, present, ferr := txn.GetFrames(h)
		if ferr != nil {
			return ferr
		}
		if !present {
			return nil
		}
		if !isType2Frame(frames[0]) {
			count = 1
			return nil
		}
		count = len(frames) - 1
		if count == 1 {
			panic("hashdata: corrupt store: Type 2 header with a single source reference")
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("hashdata: find count: %w", err)
	}
	return count, nil
}

// FindBegin returns the smallest key in the store, or found=false if
// empty.
func (s *Store) FindBegin() (h []byte, found bool, err error) {
	h, found, err = s.eng.First()
	if err != nil {
		return nil, false, fmt.Errorf("hashdata: find begin: %w", err)
	}
	return h, found, nil
}

// FindNext returns the key immediately after last in ascending byte
// order, or found=false at end of store. last must already exist;
// passing an empty last is a programming error.
func (s *Store) FindNext(last []byte) (h []byte, found bool, err error) {
	if len(last) == 0 {
		panic("hashdata: FindNext called with empty last key")
	}
	h, found, err = s.eng.Next(last)
	if err != nil {
		return nil, false, fmt.Errorf("hashdata: find next: %w", err)
	}
	return h, found, nil
}

// sortRefs returns a copy of refs sorted by SID, then offset. Nothing
// in the module calls it; Find already returns references in the
// stored frame order.
func sortRefs(refs []SourceRef) []SourceRef {
	out := make([]SourceRef, len(refs))
	copy(out, refs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].SID != out[j].SID {
			return out[i].SID < out[j].SID
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

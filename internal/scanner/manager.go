// Package scanner implements the scan manager: the read-only
// counterpart to internal/importer. Every method here is backed by a
// Badger View transaction (via the underlying stores), so a Manager
// never blocks or is blocked by a concurrent writer.
package scanner

import (
	"github.com/i5heu/blockhashdb/internal/hashdata"
	"github.com/i5heu/blockhashdb/internal/hashindex"
	"github.com/i5heu/blockhashdb/internal/sourcedata"
	"github.com/i5heu/blockhashdb/internal/sourceid"
	"github.com/i5heu/blockhashdb/internal/sourcename"
)

// Manager is the read-only scan path over one database's stores.
// seenHashes/seenSources are scoped to the lifetime of this Manager
// value, so find_expanded_hash can suppress duplicate output across
// repeated calls on the same Manager.
type Manager struct {
	hashes *hashdata.Store
	idx    *hashindex.Index
	sids   *sourceid.Store
	data   *sourcedata.Store
	names  *sourcename.Store

	seenHashes  map[string]struct{}
	seenSources map[uint64]struct{}
}

// NewManager wraps the given stores as a scan manager. idx may be nil,
// in which case every lookup falls straight through to hashes.
func NewManager(hashes *hashdata.Store, idx *hashindex.Index, sids *sourceid.Store, data *sourcedata.Store, names *sourcename.Store) *Manager {
	return &Manager{
		hashes:      hashes,
		idx:         idx,
		sids:        sids,
		data:        data,
		names:       names,
		seenHashes:  map[string]struct{}{},
		seenSources: map[uint64]struct{}{},
	}
}

// FindHash looks up h's metadata and source references. It first
// consults the hash-prefix index, when one is wired, to shortcut
// definite absence without paying for a hash-data read.
func (m *Manager) FindHash(h []byte) (meta hashdata.Meta, refs []hashdata.SourceRef, found bool, err error) {
	if m.idx != nil {
		maybe, err := m.idx.MaybePresent(h)
		if err != nil {
			return hashdata.Meta{}, nil, false, err
		}
		if !maybe {
			return hashdata.Meta{}, nil, false, nil
		}
	}
	return m.hashes.Find(h)
}

// FindHashCount returns the number of source references stored for h,
// consulting the hash-prefix index first when one is wired.
func (m *Manager) FindHashCount(h []byte) (int, error) {
	if m.idx != nil {
		maybe, err := m.idx.MaybePresent(h)
		if err != nil {
			return 0, err
		}
		if !maybe {
			return 0, nil
		}
	}
	return m.hashes.FindCount(h)
}

// FindSourceData returns the source-data tuple for sid.
func (m *Manager) FindSourceData(sid uint64) (sourcedata.Tuple, bool, error) {
	return m.data.Find(sid)
}

// FindSourceNames returns every (repository, filename) pair known for
// sid.
func (m *Manager) FindSourceNames(sid uint64) ([]sourcename.Name, error) {
	return m.names.Find(sid)
}

// FindFileHash resolves sid back to the file hash it was interned
// from. Exposed for internal/adder, which compares source references
// across two independent databases by file hash rather than by SID
// (SIDs are only dense and meaningful within one database).
func (m *Manager) FindFileHash(sid uint64) (fh []byte, found bool, err error) {
	return m.sids.FileHashOf(sid)
}

// HashBegin starts an ascending walk over every stored hash key.
func (m *Manager) HashBegin() (h []byte, found bool, err error) {
	return m.hashes.FindBegin()
}

// HashNext continues an ascending walk started by HashBegin.
func (m *Manager) HashNext(last []byte) (h []byte, found bool, err error) {
	return m.hashes.FindNext(last)
}

// SourceBegin starts an ascending walk over every interned source id.
// Source ids are a dense counter starting at 1, so the walk is a
// simple counted range rather than a key-space iteration.
func (m *Manager) SourceBegin() (sid uint64, found bool, err error) {
	_, ok, err := m.sids.MaxSID()
	if err != nil || !ok {
		return 0, false, err
	}
	return 1, true, nil
}

// SourceNext continues an ascending walk started by SourceBegin.
func (m *Manager) SourceNext(last uint64) (sid uint64, found bool, err error) {
	if last == 0 {
		panic("scanner: SourceNext called with sentinel source id 0")
	}
	max, ok, err := m.sids.MaxSID()
	if err != nil {
		return 0, false, err
	}
	if !ok || last >= max {
		return 0, false, nil
	}
	return last + 1, true, nil
}

package scanner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/i5heu/blockhashdb/internal/codec"
)

// FindExpandedHash looks up h and, on a hit, renders a JSON object with
// metadata, resolved source details, and the raw (source, offset)
// pairs. It maintains seenHashes/seenSources for the lifetime of m: a
// hash already emitted returns an empty string; a source already
// emitted is dropped from the "sources" array (but its pair stays in
// "source_offset_pairs").
func (m *Manager) FindExpandedHash(h []byte) (found bool, jsonText string, err error) {
	if m.idx != nil {
		maybe, err := m.idx.MaybePresent(h)
		if err != nil {
			return false, "", err
		}
		if !maybe {
			return false, "", nil
		}
	}

	meta, refs, found, err := m.hashes.Find(h)
	if err != nil || !found {
		return found, "", err
	}

	key := string(h)
	if _, already := m.seenHashes[key]; already {
		return true, "", nil
	}
	m.seenHashes[key] = struct{}{}

	sids := make([]uint64, len(refs))
	for i, r := range refs {
		sids[i] = r.SID
	}
	sort.Slice(sids, func(i, j int) bool { return sids[i] < sids[j] })

	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(`"entropy":`)
	b.WriteString(strconv.FormatUint(meta.Entropy, 10))
	b.WriteString(`,"block_label":"`)
	b.WriteString(codec.EscapeJSONString(string(meta.Label)))
	b.WriteString(`","source_list_id":`)
	b.WriteString(strconv.FormatUint(sourceListID(sids), 10))
	b.WriteString(`,"sources":[`)

	first := true
	for _, sid := range sids {
		if _, already := m.seenSources[sid]; already {
			continue
		}
		m.seenSources[sid] = struct{}{}

		fh, fhFound, err := m.sids.FileHashOf(sid)
		if err != nil {
			return false, "", err
		}
		if !fhFound {
			continue
		}
		tup, tupFound, err := m.data.Find(sid)
		if err != nil {
			return false, "", err
		}
		names, err := m.names.Find(sid)
		if err != nil {
			return false, "", err
		}

		if !first {
			b.WriteByte(',')
		}
		first = false

		b.WriteByte('{')
		b.WriteString(`"file_hash":"`)
		b.WriteString(codec.BinToHex(fh))
		b.WriteString(`","filesize":`)
		b.WriteString(strconv.FormatUint(tup.Filesize, 10))
		b.WriteString(`,"file_type":"`)
		if tupFound {
			b.WriteString(codec.EscapeJSONString(tup.FileType))
		}
		b.WriteString(`","nonprobative_count":`)
		b.WriteString(strconv.FormatUint(tup.NonprobativeCount, 10))
		b.WriteString(`,"names":[`)
		for i, n := range names {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(codec.EscapeJSONString(n.Repository))
			b.WriteString(`","`)
			b.WriteString(codec.EscapeJSONString(n.Filename))
			b.WriteByte('"')
		}
		b.WriteString(`]}`)
	}
	b.WriteString(`],"source_offset_pairs":[`)

	firstPair := true
	for _, r := range refs {
		fh, fhFound, err := m.sids.FileHashOf(r.SID)
		if err != nil {
			return false, "", err
		}
		if !fhFound {
			continue
		}
		if !firstPair {
			b.WriteByte(',')
		}
		firstPair = false
		b.WriteByte('"')
		b.WriteString(codec.BinToHex(fh))
		b.WriteString(`",`)
		b.WriteString(strconv.FormatUint(r.Offset, 10))
	}
	b.WriteString(`]}`)

	return true, b.String(), nil
}

// sourceListID is a stable, per-set identifier for a sorted SID list:
// the 64-bit xxhash of the SIDs packed as big-endian 8-byte words.
func sourceListID(sortedSIDs []uint64) uint64 {
	buf := make([]byte, 8*len(sortedSIDs))
	for i, sid := range sortedSIDs {
		off := i * 8
		buf[off] = byte(sid >> 56)
		buf[off+1] = byte(sid >> 48)
		buf[off+2] = byte(sid >> 40)
		buf[off+3] = byte(sid >> 32)
		buf[off+4] = byte(sid >> 24)
		buf[off+5] = byte(sid >> 16)
		buf[off+6] = byte(sid >> 8)
		buf[off+7] = byte(sid)
	}
	return xxhash.Sum64(buf)
}

package hashdata

import (
	"fmt"

	"github.com/i5heu/blockhashdb/internal/codec"
)

// SourceRef identifies one observed copy of a block: the interned
// source id and the sector-aligned file offset it was found at (already
// divided by sector_size).
type SourceRef struct {
	SID    uint64
	Offset uint64 // FO / sector_size
}

// Meta is the per-hash metadata: entropy and a short block label.
type Meta struct {
	Entropy uint64
	Label   []byte
}

// Equal reports whether two Meta values carry the same fields - used by
// the upsert state machine to distinguish data_same from data_changed.
func (m Meta) Equal(o Meta) bool {
	if m.Entropy != o.Entropy {
		return false
	}
	if len(m.Label) != len(o.Label) {
		return false
	}
	for i := range m.Label {
		if m.Label[i] != o.Label[i] {
			return false
		}
	}
	return true
}

// encodeType1 builds the sole-entry record for a hash with exactly one
// source reference: varint(SID) || varint(FO/sector) || varint(entropy)
// || varint(label_len) || label.
func encodeType1(ref SourceRef, m Meta) []byte {
	b := codec.PutUvarint(nil, ref.SID)
	b = codec.PutUvarint(b, ref.Offset)
	b = codec.PutUvarint(b, m.Entropy)
	b = codec.PutUvarint(b, uint64(len(m.Label)))
	b = append(b, m.Label...)
	return b
}

func decodeType1(b []byte) (SourceRef, Meta, error) {
	sid, n1, err := codec.Uvarint(b)
	if err != nil {
		return SourceRef{}, Meta{}, fmt.Errorf("hashdata: decode type1 sid: %w", err)
	}
	b = b[n1:]
	off, n2, err := codec.Uvarint(b)
	if err != nil {
		return SourceRef{}, Meta{}, fmt.Errorf("hashdata: decode type1 offset: %w", err)
	}
	b = b[n2:]
	m, err := decodeMetaTail(b)
	if err != nil {
		return SourceRef{}, Meta{}, err
	}
	return SourceRef{SID: sid, Offset: off}, m, nil
}

// encodeType2 builds the metadata header written when a hash has two or
// more source references: a leading 0x00 byte (which never collides
// with Type 3's leading SID-varint byte, since SID >= 1) followed by the
// same entropy/label fields as Type 1.
func encodeType2(m Meta) []byte {
	b := make([]byte, 0, 1+10+10+len(m.Label))
	b = append(b, 0x00)
	b = codec.PutUvarint(b, m.Entropy)
	b = codec.PutUvarint(b, uint64(len(m.Label)))
	b = append(b, m.Label...)
	return b
}

func decodeType2(b []byte) (Meta, error) {
	if len(b) == 0 || b[0] != 0x00 {
		panic("hashdata: decodeType2 called on non-type-2 frame")
	}
	return decodeMetaTail(b[1:])
}

func decodeMetaTail(b []byte) (Meta, error) {
	entropy, n1, err := codec.Uvarint(b)
	if err != nil {
		return Meta{}, fmt.Errorf("hashdata: decode entropy: %w", err)
	}
	b = b[n1:]
	labelLen, n2, err := codec.Uvarint(b)
	if err != nil {
		return Meta{}, fmt.Errorf("hashdata: decode label length: %w", err)
	}
	b = b[n2:]
	if uint64(len(b)) < labelLen {
		return Meta{}, fmt.Errorf("hashdata: truncated label: need %d have %d", labelLen, len(b))
	}
	label := make([]byte, labelLen)
	copy(label, b[:labelLen])
	return Meta{Entropy: entropy, Label: label}, nil
}

// encodeType3 builds one source-reference record, always co-resident
// under a key with exactly one Type 2 header.
func encodeType3(ref SourceRef) []byte {
	return codec.EncodePair(ref.SID, ref.Offset)
}

func decodeType3(b []byte) (SourceRef, error) {
	sid, off, _, err := codec.DecodePair(b)
	if err != nil {
		return SourceRef{}, fmt.Errorf("hashdata: decode type3: %w", err)
	}
	return SourceRef{SID: sid, Offset: off}, nil
}

// isType2Frame reports whether frame is a Type 2 metadata header: its
// defining property is a leading zero byte, which Type 1 and Type 3
// records can never produce since both start with varint(SID) for
// SID >= 1.
func isType2Frame(frame []byte) bool {
	return len(frame) > 0 && frame[0] == 0x00
}

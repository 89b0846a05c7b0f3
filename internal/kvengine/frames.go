package kvengine

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/i5heu/blockhashdb/internal/codec"
)

// Frame-based multi-value emulation.
//
// Badger stores exactly one value per key, but callers need an ordered
// map that allows *several* values under one key, delivered in
// byte-lexicographic order. We get that by packing the values ("frames")
// for a key into a single Badger value as a sequence of
// varint(len) || payload records, kept sorted by payload bytes. A
// lone-frame value and "no value" are the two states every caller can
// tell apart without inspecting frame count: GetFrames reports
// present=true with no frames only when the key exists with an empty
// value, which never happens in practice since every writer either
// deletes the key or leaves at least one frame.

func encodeFrames(frames [][]byte) []byte {
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(codec.PutUvarint(nil, uint64(len(f))))
		buf.Write(f)
	}
	return buf.Bytes()
}

func decodeFrames(raw []byte) ([][]byte, error) {
	var frames [][]byte
	for len(raw) > 0 {
		n, used, err := codec.Uvarint(raw)
		if err != nil {
			return nil, fmt.Errorf("kvengine: corrupt frame length: %w", err)
		}
		raw = raw[used:]
		if uint64(len(raw)) < n {
			return nil, fmt.Errorf("kvengine: truncated frame: need %d have %d", n, len(raw))
		}
		frames = append(frames, raw[:n:n])
		raw = raw[n:]
	}
	return frames, nil
}

// GetFrames returns the ordered list of frames stored under key, or
// (nil, false, nil) if key is absent.
func (t *Txn) GetFrames(key []byte) ([][]byte, bool, error) {
	raw, ok, err := t.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	frames, err := decodeFrames(raw)
	if err != nil {
		return nil, false, err
	}
	return frames, true, nil
}

// SetFrames overwrites the complete frame list under key. An empty
// slice deletes the key, since a hash with zero sources does not
// exist.
func (t *Txn) SetFrames(key []byte, frames [][]byte) error {
	if len(frames) == 0 {
		return t.Delete(key)
	}
	sorted := make([][]byte, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })
	return t.Set(key, encodeFrames(sorted))
}

// PutFrameNoDup inserts frame into its sorted position under key,
// unless an identical frame is already present, mirroring LMDB's
// put-with-no-dup-data "already-present" result.
func (t *Txn) PutFrameNoDup(key, frame []byte) (inserted bool, err error) {
	frames, _, err := t.GetFrames(key)
	if err != nil {
		return false, err
	}
	idx := sort.Search(len(frames), func(i int) bool { return bytes.Compare(frames[i], frame) >= 0 })
	if idx < len(frames) && bytes.Equal(frames[idx], frame) {
		return false, nil
	}
	out := make([][]byte, 0, len(frames)+1)
	out = append(out, frames[:idx]...)
	out = append(out, frame)
	out = append(out, frames[idx:]...)
	if err := t.Set(key, encodeFrames(out)); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteFrame removes one frame from key's frame list. It is a no-op if
// the frame is not present.
func (t *Txn) DeleteFrame(key, frame []byte) error {
	frames, ok, err := t.GetFrames(key)
	if err != nil || !ok {
		return err
	}
	out := frames[:0:0]
	for _, f := range frames {
		if !bytes.Equal(f, frame) {
			out = append(out, f)
		}
	}
	return t.SetFrames(key, out)
}

// CountFrames returns the number of frames stored under key (0 if
// absent).
func (t *Txn) CountFrames(key []byte) (int, error) {
	frames, _, err := t.GetFrames(key)
	if err != nil {
		return 0, err
	}
	return len(frames), nil
}

// Package codec implements the little-endian base-128 varint encoding
// used for every on-disk integer in the hash-data record formats, plus
// the small handful of companion encodings (hex, JSON string escape,
// NUL-separated string pairs) the stores build records out of.
package codec

import "errors"

// ErrCorruptEncoding is returned when a varint does not terminate within
// the 10 bytes required to hold any uint64.
var ErrCorruptEncoding = errors.New("codec: corrupt varint encoding")

const maxVarintLen = 10

// PutUvarint appends the varint encoding of v to dst and returns the
// extended slice.
func PutUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Uvarint decodes a varint from the front of b, returning the value and
// the number of bytes consumed. It refuses to read past maxVarintLen
// bytes without finding a terminator.
func Uvarint(b []byte) (v uint64, n int, err error) {
	var shift uint
	for n = 0; n < len(b) && n < maxVarintLen; n++ {
		c := b[n]
		v |= uint64(c&0x7f) << shift
		if c < 0x80 {
			return v, n + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrCorruptEncoding
}

// SizeUvarint returns the number of bytes PutUvarint would append for v.
func SizeUvarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// EncodePair concatenates the varint encodings of a and b.
func EncodePair(a, b uint64) []byte {
	dst := make([]byte, 0, SizeUvarint(a)+SizeUvarint(b))
	dst = PutUvarint(dst, a)
	dst = PutUvarint(dst, b)
	return dst
}

// DecodePair decodes two consecutive varints from the front of b,
// returning both values and the total number of bytes consumed.
func DecodePair(b []byte) (a, c uint64, n int, err error) {
	a, n1, err := Uvarint(b)
	if err != nil {
		return 0, 0, 0, err
	}
	c, n2, err := Uvarint(b[n1:])
	if err != nil {
		return 0, 0, 0, err
	}
	return a, c, n1 + n2, nil
}

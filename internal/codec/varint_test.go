package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, math.MaxUint32, math.MaxUint64}
	for _, v := range cases {
		enc := PutUvarint(nil, v)
		require.LessOrEqual(t, len(enc), 10)
		got, n, err := Uvarint(enc)
		require.NoError(t, err)
		require.Equal(t, len(enc), n)
		require.Equal(t, v, got)
	}
}

func TestUvarintCorrupt(t *testing.T) {
	bad := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	_, _, err := Uvarint(bad)
	require.ErrorIs(t, err, ErrCorruptEncoding)
}

func TestEncodeDecodePair(t *testing.T) {
	enc := EncodePair(7, 512)
	a, b, n, err := DecodePair(enc)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	require.EqualValues(t, 7, a)
	require.EqualValues(t, 512, b)
}

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHexToBin(t *testing.T) {
	bin, ok := HexToBin("AaBb01")
	require.True(t, ok)
	require.Equal(t, []byte{0xaa, 0xbb, 0x01}, bin)

	require.Equal(t, "aabb01", BinToHex(bin))
}

func TestHexToBinInvalid(t *testing.T) {
	_, ok := HexToBin("abc")
	require.False(t, ok)

	_, ok = HexToBin("zz")
	require.False(t, ok)
}

func TestStringPairRoundTrip(t *testing.T) {
	enc := EncodeStringPair("repo-a", "file.bin")
	s1, s2, ok := DecodeStringPair(enc)
	require.True(t, ok)
	require.Equal(t, "repo-a", s1)
	require.Equal(t, "file.bin", s2)
}

func TestEscapeJSONString(t *testing.T) {
	require.Equal(t, `a\"b\\c`, EscapeJSONString(`a"b\c`))
	require.Equal(t, `line\n`, EscapeJSONString("line\n"))
}

package sourceid

import (
	"testing"

	"github.com/i5heu/blockhashdb/internal/counters"
	"github.com/i5heu/blockhashdb/internal/kvengine"
	"github.com/stretchr/testify/require"
)

func TestInternIsIdempotentAndDense(t *testing.T) {
	eng, err := kvengine.Open(t.TempDir(), kvengine.Options{})
	require.NoError(t, err)
	defer eng.Close()
	s := Open(eng)
	tly := &counters.Tally{}

	sid1, err := s.InternFileHash([]byte("file-a"), tly)
	require.NoError(t, err)
	require.EqualValues(t, 1, sid1)

	sid2, err := s.InternFileHash([]byte("file-b"), tly)
	require.NoError(t, err)
	require.EqualValues(t, 2, sid2)

	again, err := s.InternFileHash([]byte("file-a"), tly)
	require.NoError(t, err)
	require.Equal(t, sid1, again)

	fh, found, err := s.FileHashOf(sid2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("file-b"), fh)

	require.EqualValues(t, 2, tly.SourceIDInterned)
	require.EqualValues(t, 1, tly.SourceIDAlreadyKnown)
}

package sourcedata

import (
	"testing"

	"github.com/i5heu/blockhashdb/internal/counters"
	"github.com/i5heu/blockhashdb/internal/kvengine"
	"github.com/stretchr/testify/require"
)

func TestPutIsNoOpWhenUnchanged(t *testing.T) {
	eng, err := kvengine.Open(t.TempDir(), kvengine.Options{})
	require.NoError(t, err)
	defer eng.Close()
	s := Open(eng)
	tly := &counters.Tally{}

	tup := Tuple{Filesize: 1024, FileType: "text/plain", NonprobativeCount: 2}
	require.NoError(t, s.Put(7, tup, tly))
	require.NoError(t, s.Put(7, tup, tly))
	require.EqualValues(t, 1, tly.SourceDataSame)
	require.EqualValues(t, 0, tly.SourceDataChanged)

	got, found, err := s.Find(7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, tup, got)

	changed := Tuple{Filesize: 2048, FileType: "text/plain", NonprobativeCount: 2}
	require.NoError(t, s.Put(7, changed, tly))
	require.EqualValues(t, 1, tly.SourceDataChanged)

	got, _, err = s.Find(7)
	require.NoError(t, err)
	require.Equal(t, changed, got)
}

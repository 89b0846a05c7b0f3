package sourcename

import (
	"testing"

	"github.com/i5heu/blockhashdb/internal/counters"
	"github.com/i5heu/blockhashdb/internal/kvengine"
	"github.com/stretchr/testify/require"
)

func TestAddHasSetSemantics(t *testing.T) {
	eng, err := kvengine.Open(t.TempDir(), kvengine.Options{})
	require.NoError(t, err)
	defer eng.Close()
	s := Open(eng)
	tly := &counters.Tally{}

	require.NoError(t, s.Add(3, "repo-a", "file.bin", tly))
	require.NoError(t, s.Add(3, "repo-a", "file.bin", tly))
	require.NoError(t, s.Add(3, "repo-b", "other.bin", tly))

	require.EqualValues(t, 2, tly.SourceNameInserted)
	require.EqualValues(t, 1, tly.SourceNameAlreadyKnown)

	names, err := s.Find(3)
	require.NoError(t, err)
	require.ElementsMatch(t, []Name{
		{Repository: "repo-a", Filename: "file.bin"},
		{Repository: "repo-b", Filename: "other.bin"},
	}, names)
}

package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/i5heu/blockhashdb/internal/hashdata"
	"github.com/i5heu/blockhashdb/internal/hashindex"
	"github.com/i5heu/blockhashdb/internal/kvengine"
	"github.com/i5heu/blockhashdb/internal/sourcedata"
	"github.com/i5heu/blockhashdb/internal/sourceid"
	"github.com/i5heu/blockhashdb/internal/sourcename"
	"github.com/stretchr/testify/require"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()

	openEng := func(name string) *kvengine.Engine {
		eng, err := kvengine.Open(filepath.Join(dir, name), kvengine.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { eng.Close() })
		return eng
	}

	m, err := NewManager(
		hashdata.Open(openEng("lmdb_hash_data_store"), 0, 512),
		hashindex.Open(openEng("lmdb_hash_store"), 16, 4),
		sourceid.Open(openEng("lmdb_source_id_store")),
		sourcedata.Open(openEng("lmdb_source_data_store")),
		sourcename.Open(openEng("lmdb_source_name_store")),
		dir,
		"test",
		0,
		nil,
	)
	require.NoError(t, err)
	return m
}

func TestInsertHashInternsSourceAndCounts(t *testing.T) {
	m := openTestManager(t)
	defer m.Close()

	fh := []byte("file-hash-one")
	h := []byte{0x01, 0x02, 0x03, 0x04}

	count, err := m.InsertHash(h, fh, 0, 7, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.EqualValues(t, 1, m.Tally.SourceIDInterned)
	require.EqualValues(t, 1, m.Tally.DataInserted)

	count, err = m.InsertHash(h, fh, 0, 7, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.EqualValues(t, 1, m.Tally.SourceIDAlreadyKnown)
}

func TestInsertSourceDataAndNameNoOps(t *testing.T) {
	m := openTestManager(t)
	defer m.Close()

	require.NoError(t, m.InsertSourceData(1, 1024, "jpg", 0))
	require.NoError(t, m.InsertSourceData(1, 1024, "jpg", 0))
	require.EqualValues(t, 1, m.Tally.SourceDataSame)

	require.NoError(t, m.InsertSourceName(1, "repo", "a.jpg"))
	require.NoError(t, m.InsertSourceName(1, "repo", "a.jpg"))
	require.EqualValues(t, 1, m.Tally.SourceNameAlreadyKnown)
}

func TestNewManagerWritesLogHeader(t *testing.T) {
	dir := t.TempDir()

	openEng := func(name string) *kvengine.Engine {
		eng, err := kvengine.Open(filepath.Join(dir, name), kvengine.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { eng.Close() })
		return eng
	}

	m, err := NewManager(
		hashdata.Open(openEng("lmdb_hash_data_store"), 0, 512),
		hashindex.Open(openEng("lmdb_hash_store"), 16, 4),
		sourceid.Open(openEng("lmdb_source_id_store")),
		sourcedata.Open(openEng("lmdb_source_data_store")),
		sourcename.Open(openEng("lmdb_source_name_store")),
		dir,
		"create",
		0,
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "blockhashdb.log"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `command="create"`)
}

package importfmt

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/i5heu/blockhashdb/internal/hashdata"
	"github.com/i5heu/blockhashdb/internal/hashindex"
	"github.com/i5heu/blockhashdb/internal/importer"
	"github.com/i5heu/blockhashdb/internal/kvengine"
	"github.com/i5heu/blockhashdb/internal/scanner"
	"github.com/i5heu/blockhashdb/internal/sourcedata"
	"github.com/i5heu/blockhashdb/internal/sourceid"
	"github.com/i5heu/blockhashdb/internal/sourcename"
	"github.com/stretchr/testify/require"
)

func openFixtureEngine(t *testing.T, dir, name string) *kvengine.Engine {
	t.Helper()
	eng, err := kvengine.Open(filepath.Join(dir, name), kvengine.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func openFixture(t *testing.T) (*importer.Manager, *scanner.Manager) {
	t.Helper()
	dir := t.TempDir()

	hashes := hashdata.Open(openFixtureEngine(t, dir, "lmdb_hash_data_store"), 0, 512)
	idx := hashindex.Open(openFixtureEngine(t, dir, "lmdb_hash_store"), 16, 4)
	sids := sourceid.Open(openFixtureEngine(t, dir, "lmdb_source_id_store"))
	data := sourcedata.Open(openFixtureEngine(t, dir, "lmdb_source_data_store"))
	names := sourcename.Open(openFixtureEngine(t, dir, "lmdb_source_name_store"))

	im, err := importer.NewManager(hashes, idx, sids, data, names, dir, "import_tab", 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { im.Close() })

	return im, scanner.NewManager(hashes, idx, sids, data, names)
}

func TestImportTabInsertsRecords(t *testing.T) {
	im, sc := openFixture(t)

	input := "aabb\t1122\t0\trepoA\tfile.bin\n"
	n, err := ImportTab(strings.NewReader(input), im)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	h := []byte{0xaa, 0xbb}
	count, err := sc.FindHashCount(h)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestImportJSONInsertsRecords(t *testing.T) {
	im, sc := openFixture(t)

	line := `{"block_hash":"aabb","file_hash":"1122","file_offset":0,"entropy":3,"block_label":"lbl","repository":"repoA","filename":"f.bin","filesize":10,"file_type":"bin","nonprobative_count":0}` + "\n"
	n, err := ImportJSON(strings.NewReader(line), im)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	h := []byte{0xaa, 0xbb}
	meta, _, found, err := sc.FindHash(h)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 3, meta.Entropy)
}

func TestExportJSONRoundTrips(t *testing.T) {
	im, sc := openFixture(t)
	_, err := ImportTab(strings.NewReader("aabb\t1122\t0\trepoA\tfile.bin\n"), im)
	require.NoError(t, err)

	var b strings.Builder
	n, err := ExportJSON(sc, &b)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Contains(t, b.String(), `"source_offset_pairs":[`)
}

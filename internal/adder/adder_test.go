package adder

import (
	"path/filepath"
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

type fixture struct {
	importer *importer.Manager
	scanner  *scanner.Manager
}

func openFixtureEngine(t *testing.T, dir, name string) *kvengine.Engine {
	t.Helper()
	eng, err := kvengine.Open(filepath.Join(dir, name), kvengine.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	dir := t.TempDir()

	hashes := hashdata.Open(openFixtureEngine(t, dir, "lmdb_hash_data_store"), 0, 512)
	idx := hashindex.Open(openFixtureEngine(t, dir, "lmdb_hash_store"), 16, 4)
	sids := sourceid.Open(openFixtureEngine(t, dir, "lmdb_source_id_store"))
	data := sourcedata.Open(openFixtureEngine(t, dir, "lmdb_source_data_store"))
	names := sourcename.Open(openFixtureEngine(t, dir, "lmdb_source_name_store"))

	im, err := importer.NewManager(hashes, idx, sids, data, names, dir, name, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { im.Close() })

	return &fixture{
		importer: im,
		scanner:  scanner.NewManager(hashes, idx, sids, data, names),
	}
}

func insertFixture(t *testing.T, f *fixture, h []byte, fh []byte, fo uint64, repo string) {
	t.Helper()
	_, err := f.importer.InsertHash(h, fh, fo, 1, nil)
	require.NoError(t, err)
	if repo != "" {
		require.NoError(t, f.importer.InsertSourceName(mustSID(t, f, fh), repo, "file.bin"))
	}
}

func mustSID(t *testing.T, f *fixture, fh []byte) uint64 {
	t.Helper()
	n, found, err := f.scannerInternLookup(fh)
	require.NoError(t, err)
	require.True(t, found)
	return n
}

func (f *fixture) scannerInternLookup(fh []byte) (uint64, bool, error) {
	// Source ids are dense starting at 1; scan forward until FindFileHash
	// matches fh.
	sid, found, err := f.scanner.SourceBegin()
	for found && err == nil {
		got, ok, ferr := f.scanner.FindFileHash(sid)
		if ferr != nil {
			return 0, false, ferr
		}
		if ok && string(got) == string(fh) {
			return sid, true, nil
		}
		sid, found, err = f.scanner.SourceNext(sid)
	}
	return 0, false, err
}

func TestAddCopiesEverything(t *testing.T) {
	src := newFixture(t, "src")
	dst := newFixture(t, "dst")

	h1 := []byte{0x01, 0x02}
	h2 := []byte{0x03, 0x04}
	insertFixture(t, src, h1, []byte("fh-1"), 0, "")
	insertFixture(t, src, h2, []byte("fh-2"), 0, "")

	require.NoError(t, Add(src.scanner, dst.importer))

	count, err := dst.scanner.FindHashCount(h1)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	count, err = dst.scanner.FindHashCount(h2)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestIntersectKeepsOnlyCommonPairs(t *testing.T) {
	a := newFixture(t, "a")
	b := newFixture(t, "b")
	dst := newFixture(t, "dst")

	shared := []byte{0xaa}
	onlyA := []byte{0xbb}

	insertFixture(t, a, shared, []byte("fh-shared"), 0, "")
	insertFixture(t, b, shared, []byte("fh-shared"), 0, "")
	insertFixture(t, a, onlyA, []byte("fh-only-a"), 0, "")

	require.NoError(t, Intersect(a.scanner, b.scanner, dst.importer))

	count, err := dst.scanner.FindHashCount(shared)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = dst.scanner.FindHashCount(onlyA)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestSubtractDropsMatchingTriples(t *testing.T) {
	a := newFixture(t, "a")
	b := newFixture(t, "b")
	dst := newFixture(t, "dst")

	shared := []byte{0xaa}
	insertFixture(t, a, shared, []byte("fh-shared"), 0, "")
	insertFixture(t, b, shared, []byte("fh-shared"), 0, "")

	onlyA := []byte{0xbb}
	insertFixture(t, a, onlyA, []byte("fh-only-a"), 0, "")

	require.NoError(t, Subtract(a.scanner, b.scanner, dst.importer))

	count, err := dst.scanner.FindHashCount(shared)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	count, err = dst.scanner.FindHashCount(onlyA)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDeduplicateKeepsOnlySingleSourceHashes(t *testing.T) {
	src := newFixture(t, "src")
	dst := newFixture(t, "dst")

	unique := []byte{0x01}
	shared := []byte{0x02}
	insertFixture(t, src, unique, []byte("fh-1"), 0, "")
	insertFixture(t, src, shared, []byte("fh-2"), 0, "")
	_, err := src.importer.InsertHash(shared, []byte("fh-3"), 512, 1, nil)
	require.NoError(t, err)

	require.NoError(t, Deduplicate(src.scanner, dst.importer))

	count, err := dst.scanner.FindHashCount(unique)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = dst.scanner.FindHashCount(shared)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestAddMultipleMergesInAscendingOrder(t *testing.T) {
	p1 := newFixture(t, "p1")
	p2 := newFixture(t, "p2")
	dst := newFixture(t, "dst")

	insertFixture(t, p1, []byte{0x01}, []byte("fh-a"), 0, "")
	insertFixture(t, p1, []byte{0x05}, []byte("fh-b"), 0, "")
	insertFixture(t, p2, []byte{0x03}, []byte("fh-c"), 0, "")

	require.NoError(t, AddMultiple([]*scanner.Manager{p1.scanner, p2.scanner}, dst.importer))

	for _, h := range [][]byte{{0x01}, {0x03}, {0x05}} {
		count, err := dst.scanner.FindHashCount(h)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	}
}

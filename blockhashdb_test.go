package blockhashdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateOpenInsertAndScan(t *testing.T) {
	dir := t.TempDir()

	db, err := Create(Config{Path: dir}, CreateOptions{HashLen: 16})
	require.NoError(t, err)

	h := []byte{0x01, 0x02, 0x03, 0x04}
	fh := []byte("a-file-hash")
	_, err = db.Importer().InsertHash(h, fh, 0, 9, []byte("label"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := Open(Config{Path: dir})
	require.NoError(t, err)
	defer db2.Close()

	meta, refs, found, err := db2.Scanner().FindHash(h)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 9, meta.Entropy)
	require.Len(t, refs, 1)
}

func TestCreateRefusesDoubleCreate(t *testing.T) {
	dir := t.TempDir()
	db, err := Create(Config{Path: dir}, CreateOptions{HashLen: 16})
	require.NoError(t, err)
	defer db.Close()

	_, err = Create(Config{Path: dir}, CreateOptions{HashLen: 16})
	require.Error(t, err)
}

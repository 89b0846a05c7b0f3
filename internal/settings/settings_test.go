package settings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateThenOpenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := Default(32)
	s.MaxSourceOffsetPairs = 5

	require.NoError(t, Create(dir, s))

	got, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestCreateRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Create(dir, Default(32)))
	require.Error(t, Create(dir, Default(32)))
}

func TestOpenMissingFails(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorIs(t, err, ErrMissingSettings)
}

func TestOpenWrongVersionFails(t *testing.T) {
	dir := t.TempDir()
	s := Default(32)
	s.SettingsVersion = 1
	require.NoError(t, Create(dir, s))

	_, err := Open(dir)
	require.ErrorIs(t, err, ErrUnknownVersion)
}

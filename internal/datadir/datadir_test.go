package datadir_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgnest-project/pgnest/internal/datadir"
	"github.com/pgnest-project/pgnest/pkg/model"
)

func writeInitialized(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "global"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PG_VERSION"), []byte("16\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "global", "pg_control"), make([]byte, 512), 0o600))
}

func TestIsValid_CompletedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	writeInitialized(t, dir)
	assert.True(t, datadir.IsValid(dir))
}

func TestIsValid_PartialDirectory(t *testing.T) {
	// global/ exists but the late marker is absent: initialisation
	// started and did not finish.
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "global"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PG_VERSION"), []byte("16\n"), 0o644))

	assert.False(t, datadir.IsValid(dir))
}

func TestIsValid_MissingDirectory(t *testing.T) {
	assert.False(t, datadir.IsValid(filepath.Join(t.TempDir(), "nope")))
}

func TestRecover_RemovesPartialState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "global"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "postgresql.conf"), []byte("#"), 0o644))

	outcome, err := datadir.Recover(dir)
	require.NoError(t, err)
	assert.Equal(t, model.Removed, outcome)
	assert.NoDirExists(t, dir)

	// Re-initialisation after recovery produces a valid directory.
	writeInitialized(t, dir)
	assert.True(t, datadir.IsValid(dir))
	assert.FileExists(t, filepath.Join(dir, "PG_VERSION"))
	assert.FileExists(t, filepath.Join(dir, "global", "pg_control"))
}

func TestRecover_LeavesValidDirectoryAlone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	writeInitialized(t, dir)

	outcome, err := datadir.Recover(dir)
	require.NoError(t, err)
	assert.Equal(t, model.Missing, outcome)
	assert.True(t, datadir.IsValid(dir))
}

func TestRecover_LeavesEmptyDirectoryAlone(t *testing.T) {
	// Empty-but-existing may be a fresh mount point; not corruption.
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	outcome, err := datadir.Recover(dir)
	require.NoError(t, err)
	assert.Equal(t, model.Missing, outcome)
	assert.DirExists(t, dir)
}

func TestRecover_MissingDirectoryIsNoop(t *testing.T) {
	outcome, err := datadir.Recover(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, model.Missing, outcome)
}

package cli

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgnest-project/pgnest/pkg/model"
)

func TestState_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	_, exists := loadState(dir)
	assert.False(t, exists)

	st := &clusterState{
		Name:      "ci",
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Settings: model.Settings{
			Version: "16",
			Host:    "localhost",
			Port:    15432,
			DataDir: "/tmp/pgnest-data",
		},
	}
	require.NoError(t, saveState(dir, st))

	loaded, exists := loadState(dir)
	require.True(t, exists)
	assert.Equal(t, st.Name, loaded.Name)
	assert.Equal(t, st.Settings.Port, loaded.Settings.Port)
	assert.Equal(t, st.Settings.DataDir, loaded.Settings.DataDir)

	clearState(dir)
	_, exists = loadState(dir)
	assert.False(t, exists)
}

func TestState_CorruptFileIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, saveState(dir, &clusterState{}))

	// Truncate to garbage.
	require.NoError(t, os.WriteFile(statePath(dir), []byte("{not json"), 0o600))

	_, exists := loadState(dir)
	assert.False(t, exists)
}

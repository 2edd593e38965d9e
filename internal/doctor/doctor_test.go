package doctor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgnest-project/pgnest/pkg/config"
	"github.com/pgnest-project/pgnest/pkg/model"
)

func healthyBootstrap(t *testing.T) *config.Bootstrap {
	t.Helper()
	return &config.Bootstrap{
		Privileges: model.PrivilegesUnprivileged,
		Mode:       model.ModeInProcess,
		Settings: model.Settings{
			Version: "16",
			DataDir: filepath.Join(t.TempDir(), "data"),
		},
		SetupTimeout:    time.Minute,
		StartTimeout:    time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

func findCategory(result *Result, category string) *Finding {
	for i := range result.Findings {
		if result.Findings[i].Category == category {
			return &result.Findings[i]
		}
	}
	return nil
}

func TestCheck_HealthyBootstrap(t *testing.T) {
	result, err := NewDoctor(healthyBootstrap(t)).Check(false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Nil(t, findCategory(result, "worker"))
	assert.Nil(t, findCategory(result, "datadir"))
}

func TestCheck_MissingWorkerBinary(t *testing.T) {
	boot := healthyBootstrap(t)
	boot.Mode = model.ModeSubprocess
	boot.WorkerBin = filepath.Join(t.TempDir(), "absent")

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)

	f := findCategory(result, "worker")
	require.NotNil(t, f)
	assert.Equal(t, "critical", f.Severity)
	assert.Equal(t, boot.WorkerBin, f.Path)
}

func TestCheck_NonExecutableWorkerIsError(t *testing.T) {
	boot := healthyBootstrap(t)
	boot.Mode = model.ModeSubprocess
	boot.WorkerBin = filepath.Join(t.TempDir(), "worker")
	require.NoError(t, os.WriteFile(boot.WorkerBin, []byte("#"), 0o644))

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	f := findCategory(result, "worker")
	require.NotNil(t, f)
	assert.Equal(t, "error", f.Severity)
}

func TestCheck_InProcessIgnoresWorkerBinary(t *testing.T) {
	boot := healthyBootstrap(t)
	boot.WorkerBin = "/does/not/exist"

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	assert.Nil(t, findCategory(result, "worker"))
}

func TestCheck_PartialDataDirWarns(t *testing.T) {
	boot := healthyBootstrap(t)
	require.NoError(t, os.MkdirAll(filepath.Join(boot.Settings.DataDir, "global"), 0o755))

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	f := findCategory(result, "datadir")
	require.NotNil(t, f)
	assert.Equal(t, "warning", f.Severity)
	assert.True(t, result.Healthy, "a recoverable data dir does not fail the check")
}

func TestCheck_EmptyDataDirIsFine(t *testing.T) {
	boot := healthyBootstrap(t)
	require.NoError(t, os.MkdirAll(boot.Settings.DataDir, 0o755))

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	assert.Nil(t, findCategory(result, "datadir"))
}

func TestCheck_ValidDataDirIsFine(t *testing.T) {
	boot := healthyBootstrap(t)
	require.NoError(t, os.MkdirAll(filepath.Join(boot.Settings.DataDir, "global"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(boot.Settings.DataDir, "global", "pg_control"), []byte{0}, 0o600))

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	assert.Nil(t, findCategory(result, "datadir"))
}

func TestCheck_NoDataDirConfigured(t *testing.T) {
	boot := healthyBootstrap(t)
	boot.Settings.DataDir = ""

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	f := findCategory(result, "datadir")
	require.NotNil(t, f)
	assert.Equal(t, "critical", f.Severity)
}

func TestCheck_RootInProcessIsCritical(t *testing.T) {
	boot := healthyBootstrap(t)
	boot.Privileges = model.PrivilegesRoot
	boot.Mode = model.ModeInProcess

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	require.NotNil(t, findCategory(result, "privileges"))
}

func TestCheck_UnusableScratchDir(t *testing.T) {
	boot := healthyBootstrap(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte{}, 0o644))
	boot.ScratchDir = filepath.Join(blocker, "scratch")

	result, err := NewDoctor(boot).Check(false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	require.NotNil(t, findCategory(result, "environment"))
}

func TestCheck_StrictReportsEmptyCache(t *testing.T) {
	boot := healthyBootstrap(t)
	boot.CacheDir = t.TempDir()

	result, err := NewDoctor(boot).Check(true)
	require.NoError(t, err)
	f := findCategory(result, "cache")
	require.NotNil(t, f)
	assert.Equal(t, "info", f.Severity)
	assert.True(t, result.Healthy)
}

func TestCheck_StrictFindsCachedInstallation(t *testing.T) {
	boot := healthyBootstrap(t)
	boot.CacheDir = t.TempDir()
	binDir := filepath.Join(boot.CacheDir, "16.4.0", "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	for _, name := range []string{"initdb", "pg_ctl", "postgres"} {
		require.NoError(t, os.WriteFile(filepath.Join(binDir, name), []byte("#"), 0o755))
	}

	result, err := NewDoctor(boot).Check(true)
	require.NoError(t, err)
	assert.Nil(t, findCategory(result, "cache"))
}

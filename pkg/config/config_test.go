package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgnest-project/pgnest/pkg/config"
	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/model"
)

func TestLoadFile_MissingReturnsDefaults(t *testing.T) {
	cfg, err := config.LoadFile(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFile(), cfg)
}

func TestLoadFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultFile()
	cfg.Version = "15"
	cfg.Port = 15544
	cfg.Configuration = map[string]string{"fsync": "off"}

	require.NoError(t, config.SaveFile(dir, cfg))
	loaded, err := config.LoadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeConfigFile(t, dir, "port: [not a port\n"))

	_, err := config.LoadFile(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrConfigParse))
}

func TestResolve_Defaults(t *testing.T) {
	clearBootstrapEnv(t)
	pinWorkerBinIfRoot(t)

	boot, err := config.Resolve(nil)
	require.NoError(t, err)

	assert.Equal(t, "16", boot.Settings.Version)
	assert.Equal(t, uint16(5432), boot.Settings.Port)
	assert.Equal(t, "localhost", boot.Settings.Host)
	assert.Equal(t, "postgres", boot.Settings.Username)
	assert.Equal(t, "postgres", boot.Settings.Database)
	assert.True(t, boot.Settings.Temporary, "no explicit data dir means disposable")
	assert.False(t, boot.Settings.TrustInstallationDir)
	assert.Equal(t, 30*time.Second, boot.ShutdownTimeout)
}

func TestResolve_ModeDerivation(t *testing.T) {
	clearBootstrapEnv(t)
	pinWorkerBinIfRoot(t)

	boot, err := config.Resolve(nil)
	require.NoError(t, err)
	if boot.Privileges == model.PrivilegesRoot {
		assert.Equal(t, model.ModeSubprocess, boot.Mode, "root must not run the engine in-process")
	} else {
		assert.Equal(t, model.ModeInProcess, boot.Mode)
	}
}

func TestResolve_RootRequiresWorkerBin(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
	clearBootstrapEnv(t)

	_, err := config.Resolve(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrPrivilege))
	assert.Contains(t, err.Error(), config.EnvWorkerBin)
}

func TestResolve_WorkerBinForcesSubprocess(t *testing.T) {
	clearBootstrapEnv(t)
	t.Setenv(config.EnvWorkerBin, "/usr/local/bin/pgnest-worker")

	boot, err := config.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, model.ModeSubprocess, boot.Mode)
	assert.Equal(t, "/usr/local/bin/pgnest-worker", boot.WorkerBin)
}

func TestResolve_EnvOverrides(t *testing.T) {
	clearBootstrapEnv(t)
	pinWorkerBinIfRoot(t)
	dataDir := filepath.Join(t.TempDir(), "keep-me")
	installDir := filepath.Join(t.TempDir(), "pg16")
	t.Setenv(config.EnvDataDir, dataDir)
	t.Setenv(config.EnvInstallationDir, installDir)
	t.Setenv(config.EnvSuperuser, "admin")
	t.Setenv(config.EnvSuperuserPassword, "hunter2")

	boot, err := config.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, dataDir, boot.Settings.DataDir)
	assert.False(t, boot.Settings.Temporary, "an explicit data dir is kept")
	assert.Equal(t, installDir, boot.Settings.InstallationDir)
	assert.True(t, boot.Settings.TrustInstallationDir)
	assert.Equal(t, "admin", boot.Settings.Username)
	assert.Equal(t, "hunter2", boot.Settings.Password)
}

func TestResolve_ShutdownTimeout(t *testing.T) {
	clearBootstrapEnv(t)
	pinWorkerBinIfRoot(t)
	t.Setenv(config.EnvShutdownTimeoutSecs, "90")

	boot, err := config.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, boot.ShutdownTimeout)
}

func TestResolve_ShutdownTimeoutNotAnInteger(t *testing.T) {
	clearBootstrapEnv(t)
	pinWorkerBinIfRoot(t)
	t.Setenv(config.EnvShutdownTimeoutSecs, "soon")

	_, err := config.Resolve(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrConfigParse))
	assert.Contains(t, err.Error(), config.EnvShutdownTimeoutSecs)
	assert.Contains(t, err.Error(), "soon")
}

func TestResolve_ShutdownTimeoutOutOfRange(t *testing.T) {
	clearBootstrapEnv(t)
	pinWorkerBinIfRoot(t)
	for _, raw := range []string{"0", "-5", "601"} {
		t.Setenv(config.EnvShutdownTimeoutSecs, raw)
		_, err := config.Resolve(nil)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, errclass.ErrConfigParse), raw)
		assert.Contains(t, err.Error(), "[1, 600]")
	}
}

func TestResolve_PreparedEnvironment(t *testing.T) {
	clearBootstrapEnv(t)
	pinWorkerBinIfRoot(t)

	boot, err := config.Resolve(nil)
	require.NoError(t, err)

	vars := make(map[string]model.EnvVar)
	for _, v := range boot.Environment {
		vars[v.Name] = v
	}

	home, ok := vars["HOME"]
	require.True(t, ok)
	homeVal, present := home.Value.Expose()
	require.True(t, present)
	assert.Equal(t, boot.ScratchDir, homeVal)

	tz, ok := vars["TZ"]
	require.True(t, ok)
	tzVal, present := tz.Value.Expose()
	require.True(t, present)
	assert.Equal(t, "UTC", tzVal)

	svc, ok := vars["PGSERVICEFILE"]
	require.True(t, ok)
	assert.False(t, svc.Value.Present(), "PGSERVICEFILE gets unset, not overwritten")

	for _, name := range []string{"XDG_CACHE_HOME", "XDG_RUNTIME_DIR", "PGPASSFILE"} {
		_, ok := vars[name]
		assert.True(t, ok, name)
	}
}

func TestBootstrap_Timeout(t *testing.T) {
	b := &config.Bootstrap{
		SetupTimeout:    5 * time.Minute,
		StartTimeout:    time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
	assert.Equal(t, 5*time.Minute, b.Timeout(model.OpSetup))
	assert.Equal(t, time.Minute, b.Timeout(model.OpStart))
	assert.Equal(t, 30*time.Second, b.Timeout(model.OpStop))
}

func TestBootstrap_EnsureScratch(t *testing.T) {
	b := &config.Bootstrap{ScratchDir: filepath.Join(t.TempDir(), "scratch")}
	require.NoError(t, b.EnsureScratch())
	require.NoError(t, b.EnsureScratch())
	assert.DirExists(t, filepath.Join(b.ScratchDir, "cache"))
	assert.DirExists(t, filepath.Join(b.ScratchDir, "run"))
}

func writeConfigFile(t *testing.T, dir, contents string) error {
	t.Helper()
	return os.WriteFile(filepath.Join(dir, "pgnest.yaml"), []byte(contents), 0o644)
}

// pinWorkerBinIfRoot satisfies the root-requires-worker-binary check
// for tests that assert on other Resolve behaviour. Resolve never
// stats the binary, so a fixed path is enough.
func pinWorkerBinIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Setenv(config.EnvWorkerBin, "/usr/local/bin/pgnest-worker")
	}
}

// clearBootstrapEnv unsets every recognised variable for the duration
// of the test. t.Setenv registers the restore; the explicit unset
// leaves a clean slate because empty and absent differ for
// PGNEST_SHUTDOWN_TIMEOUT_SECS.
func clearBootstrapEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		config.EnvInstallationDir,
		config.EnvDataDir,
		config.EnvSuperuser,
		config.EnvSuperuserPassword,
		config.EnvWorkerBin,
		config.EnvShutdownTimeoutSecs,
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

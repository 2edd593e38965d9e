// Package config resolves the bootstrap settings of a pgnest run:
// privilege level, execution mode, engine settings, the prepared
// environment, and operation timeouts. Values come from built-in
// defaults, an optional YAML file, and recognised PGNEST_* environment
// variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/model"
	"github.com/pgnest-project/pgnest/pkg/template"
)

// Recognised bootstrap environment variables.
const (
	EnvInstallationDir     = "PGNEST_INSTALLATION_DIR"
	EnvDataDir             = "PGNEST_DATA_DIR"
	EnvSuperuser           = "PGNEST_SUPERUSER"
	EnvSuperuserPassword   = "PGNEST_SUPERUSER_PASSWORD"
	EnvWorkerBin           = "PGNEST_WORKER_BIN"
	EnvShutdownTimeoutSecs = "PGNEST_SHUTDOWN_TIMEOUT_SECS"
)

// Shutdown timeout override bounds, in seconds.
const (
	minShutdownSecs = 1
	maxShutdownSecs = 600
)

// File is the optional on-disk configuration.
type File struct {
	Version         string            `yaml:"version"`
	Port            uint16            `yaml:"port"`
	DataDirTemplate string            `yaml:"data_dir_template"`
	CacheDir        string            `yaml:"cache_dir"`
	Configuration   map[string]string `yaml:"configuration"`
	Logging         LoggingConfig     `yaml:"logging"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// DefaultFile returns the built-in configuration.
func DefaultFile() *File {
	return &File{
		Version:         "16",
		Port:            5432,
		DataDirTemplate: "pgnest-{user}-{unix}",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile loads configuration from <dir>/pgnest.yaml, returning the
// defaults when the file does not exist.
func LoadFile(dir string) (*File, error) {
	cfg := DefaultFile()
	path := filepath.Join(dir, "pgnest.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errclass.ErrConfigParse.Wrap(err, path)
	}
	return cfg, nil
}

// SaveFile writes cfg to <dir>/pgnest.yaml.
func SaveFile(dir string, cfg *File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pgnest.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Bootstrap aggregates everything a run needs. Privileges are sampled
// exactly once, here.
type Bootstrap struct {
	Privileges model.ExecutionPrivileges
	Mode       model.ExecutionMode
	Settings   model.Settings

	// Environment is the prepared scope applied around engine calls:
	// scratch HOME, cache dirs, pgpass path, timezone.
	Environment []model.EnvVar

	// WorkerBin is the worker binary path; empty when running
	// in-process.
	WorkerBin string

	// ScratchDir backs the prepared environment (HOME, pgpass,
	// runtime dir).
	ScratchDir string
	CacheDir   string

	SetupTimeout    time.Duration
	StartTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Resolve builds the bootstrap settings from cfg plus the recognised
// environment variables.
func Resolve(cfg *File) (*Bootstrap, error) {
	if cfg == nil {
		cfg = DefaultFile()
	}

	privileges := model.PrivilegesUnprivileged
	if unix.Geteuid() == 0 {
		privileges = model.PrivilegesRoot
	}

	workerBin := os.Getenv(EnvWorkerBin)
	mode, err := deriveMode(privileges, workerBin)
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cacheDir = filepath.Join(base, "pgnest")
	}

	scratch := filepath.Join(os.TempDir(), template.Expand("pgnest-scratch-{user}-{pid}", nil))

	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), template.Expand(cfg.DataDirTemplate, nil))
	}

	installDir := os.Getenv(EnvInstallationDir)
	trustInstall := installDir != ""
	if installDir == "" {
		installDir = filepath.Join(cacheDir, "install", cfg.Version)
	}

	username := os.Getenv(EnvSuperuser)
	if username == "" {
		username = "postgres"
	}
	password := os.Getenv(EnvSuperuserPassword)
	if password == "" {
		password = "postgres"
	}

	shutdown, err := shutdownTimeout()
	if err != nil {
		return nil, err
	}

	settings := model.Settings{
		Version:              cfg.Version,
		Host:                 "localhost",
		Port:                 cfg.Port,
		Username:             username,
		Password:             password,
		Database:             "postgres",
		DataDir:              dataDir,
		InstallationDir:      installDir,
		Temporary:            os.Getenv(EnvDataDir) == "",
		Configuration:        cfg.Configuration,
		TrustInstallationDir: trustInstall,
	}

	return &Bootstrap{
		Privileges:      privileges,
		Mode:            mode,
		Settings:        settings,
		Environment:     preparedEnvironment(scratch),
		WorkerBin:       workerBin,
		ScratchDir:      scratch,
		CacheDir:        cacheDir,
		SetupTimeout:    5 * time.Minute,
		StartTimeout:    time.Minute,
		ShutdownTimeout: shutdown,
	}, nil
}

// deriveMode picks the execution mode. The server refuses to run as
// uid 0, so root without a configured worker binary is a bootstrap
// error here rather than a failed spawn later.
func deriveMode(privileges model.ExecutionPrivileges, workerBin string) (model.ExecutionMode, error) {
	if privileges == model.PrivilegesRoot && workerBin == "" {
		return "", errclass.ErrPrivilege.WithMessagef(
			"running as root requires %s to point at the worker binary", EnvWorkerBin)
	}
	if workerBin != "" {
		return model.ModeSubprocess, nil
	}
	return model.ModeInProcess, nil
}

// preparedEnvironment builds the scope applied around every engine
// call: a scratch HOME so the engine never writes into the caller's,
// stable cache and runtime dirs, a pgpass path, and a fixed timezone.
func preparedEnvironment(scratch string) []model.EnvVar {
	return []model.EnvVar{
		model.Set("HOME", scratch),
		model.Set("XDG_CACHE_HOME", filepath.Join(scratch, "cache")),
		model.Set("XDG_RUNTIME_DIR", filepath.Join(scratch, "run")),
		model.Set("PGPASSFILE", filepath.Join(scratch, ".pgpass")),
		model.Set("TZ", "UTC"),
		model.Unset("PGSERVICEFILE"),
	}
}

// EnsureScratch materialises the directories the prepared environment
// points at. Idempotent; called before every operation.
func (b *Bootstrap) EnsureScratch() error {
	if b.ScratchDir == "" {
		return nil
	}
	for _, dir := range []string{
		b.ScratchDir,
		filepath.Join(b.ScratchDir, "cache"),
		filepath.Join(b.ScratchDir, "run"),
	} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("prepare scratch dir: %w", err)
		}
	}
	return nil
}

// Timeout returns the wall-clock budget for op.
func (b *Bootstrap) Timeout(op model.Operation) time.Duration {
	switch op {
	case model.OpSetup:
		return b.SetupTimeout
	case model.OpStart:
		return b.StartTimeout
	default:
		return b.ShutdownTimeout
	}
}

func shutdownTimeout() (time.Duration, error) {
	raw, ok := os.LookupEnv(EnvShutdownTimeoutSecs)
	if !ok {
		return 30 * time.Second, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errclass.ErrConfigParse.WithMessagef(
			"%s must be an integer number of seconds, got %q", EnvShutdownTimeoutSecs, raw)
	}
	if secs < minShutdownSecs || secs > maxShutdownSecs {
		return 0, errclass.ErrConfigParse.WithMessagef(
			"%s must be in [%d, %d], got %d", EnvShutdownTimeoutSecs, minShutdownSecs, maxShutdownSecs, secs)
	}
	return time.Duration(secs) * time.Second, nil
}

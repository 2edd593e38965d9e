package engine

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"

	"github.com/pgnest-project/pgnest/pkg/model"
)

// embedded adapts the embedded-postgres library to the Engine
// interface. The library couples download+initdb+start into one Start
// call, so Setup starts and immediately stops the server to
// materialise binaries and the data directory.
type embedded struct {
	mu      sync.Mutex
	running map[string]*embeddedpostgres.EmbeddedPostgres // keyed by data dir
}

func newEmbedded() *embedded {
	return &embedded{running: make(map[string]*embeddedpostgres.EmbeddedPostgres)}
}

func (e *embedded) Setup(s model.Settings) error {
	db := embeddedpostgres.NewDatabase(buildConfig(s))
	if err := db.Start(); err != nil {
		return fmt.Errorf("initialise data directory: %w", err)
	}
	if err := db.Stop(); err != nil {
		return fmt.Errorf("stop after initialise: %w", err)
	}
	return nil
}

func (e *embedded) Start(s model.Settings) error {
	db := embeddedpostgres.NewDatabase(buildConfig(s))
	if err := db.Start(); err != nil {
		return err
	}
	e.mu.Lock()
	e.running[s.DataDir] = db
	e.mu.Unlock()
	return nil
}

func (e *embedded) Stop(s model.Settings) error {
	e.mu.Lock()
	db := e.running[s.DataDir]
	delete(e.running, s.DataDir)
	e.mu.Unlock()

	if db != nil {
		return db.Stop()
	}
	// No in-process instance: the server was started by another
	// process (the in-process/subprocess split guarantees this case).
	// Fall back to pg_ctl against the same data directory.
	return pgCtlStop(s)
}

func pgCtlStop(s model.Settings) error {
	pgCtl := filepath.Join(s.InstallationDir, "bin", "pg_ctl")
	out, err := exec.Command(pgCtl, "-D", s.DataDir, "-m", "fast", "stop").CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("pg_ctl stop: %s: %w", msg, err)
		}
		return fmt.Errorf("pg_ctl stop: %w", err)
	}
	return nil
}

func buildConfig(s model.Settings) embeddedpostgres.Config {
	// The library always binds localhost; Settings.Host is connection
	// info for handles, not a bind address.
	cfg := embeddedpostgres.DefaultConfig().
		Version(postgresVersion(s.Version)).
		Port(uint32(s.Port)).
		Username(s.Username).
		Password(s.Password).
		Database(s.Database).
		DataPath(s.DataDir).
		RuntimePath(s.DataDir + ".runtime")

	if s.InstallationDir != "" {
		cfg = cfg.BinariesPath(s.InstallationDir)
	}
	if s.Timeout > 0 {
		cfg = cfg.StartTimeout(s.Timeout)
	}
	if len(s.Configuration) > 0 {
		cfg = cfg.StartParameters(s.Configuration)
	}
	return cfg
}

// latestPatch maps a bare major version to a concrete downloadable
// release. Full versions pass through unchanged.
var latestPatch = map[string]string{
	"13": "13.16.0",
	"14": "14.13.0",
	"15": "15.8.0",
	"16": "16.4.0",
	"17": "17.0.0",
}

func postgresVersion(v string) embeddedpostgres.PostgresVersion {
	if full, ok := latestPatch[v]; ok {
		return embeddedpostgres.PostgresVersion(full)
	}
	switch strings.Count(v, ".") {
	case 0:
		return embeddedpostgres.PostgresVersion(v + ".0.0")
	case 1:
		return embeddedpostgres.PostgresVersion(v + ".0")
	}
	return embeddedpostgres.PostgresVersion(v)
}

package pgnest

import (
	"context"
	"fmt"
	"time"

	"github.com/pgnest-project/pgnest/internal/cluster"
	"github.com/pgnest-project/pgnest/pkg/config"
	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/fsutil"
	"github.com/pgnest-project/pgnest/pkg/logging"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// Options configures a cluster. The zero value asks for the default
// version on the default port with a temporary data directory; the
// PGNEST_* environment variables still apply underneath.
type Options struct {
	Version         string            // version requirement; empty means the default
	Port            uint16            // 0 picks the configured port
	Username        string            // superuser name
	Password        string            // superuser password
	Database        string            // database to create and connect to
	DataDir         string            // empty means a disposable directory
	InstallationDir string            // where server binaries live or get unpacked
	Temporary       bool              // force removal of the data directory on Close
	Configuration   map[string]string // extra server parameters (postgresql.conf)

	// OperationTimeout bounds each lifecycle operation when the
	// caller's context carries no deadline. Zero keeps the configured
	// timeouts.
	OperationTimeout time.Duration
}

// Cluster is a running PostgreSQL instance together with its teardown.
type Cluster struct {
	handle    *cluster.Handle
	guard     *cluster.Guard
	temporary bool
}

// resolveBootstrap builds the run configuration for Start. Swappable
// so tests can pin a bootstrap regardless of the invoking user.
var resolveBootstrap = func() (*config.Bootstrap, error) {
	return config.Resolve(config.DefaultFile())
}

// Start sets up and starts a cluster. The context bounds the setup and
// start operations; once Start returns, the cluster outlives it.
func Start(ctx context.Context, opts Options) (*Cluster, error) {
	boot, err := resolveBootstrap()
	if err != nil {
		return nil, fmt.Errorf("pgnest start: %w", err)
	}
	applyOptions(boot, opts)

	var rt cluster.Runtime
	if ctx != nil {
		rt = cluster.CallerRuntime{Ctx: ctx}
	} else {
		rt = cluster.OwnedRuntime{Timeout: opts.OperationTimeout}
	}

	handle, guard, err := cluster.Launch(rt, boot)
	if err != nil {
		return nil, err
	}
	return &Cluster{
		handle:    handle,
		guard:     guard,
		temporary: boot.Settings.Temporary,
	}, nil
}

func applyOptions(boot *config.Bootstrap, opts Options) {
	s := &boot.Settings
	if opts.Version != "" {
		s.Version = opts.Version
	}
	if opts.Port != 0 {
		s.Port = opts.Port
	}
	if opts.Username != "" {
		s.Username = opts.Username
	}
	if opts.Password != "" {
		s.Password = opts.Password
	}
	if opts.Database != "" {
		s.Database = opts.Database
	}
	if opts.DataDir != "" {
		s.DataDir = opts.DataDir
		s.Temporary = false
	}
	if opts.InstallationDir != "" {
		s.InstallationDir = opts.InstallationDir
	}
	if opts.Temporary {
		s.Temporary = true
	}
	for k, v := range opts.Configuration {
		if s.Configuration == nil {
			s.Configuration = make(map[string]string)
		}
		s.Configuration[k] = v
	}
	if opts.OperationTimeout > 0 {
		boot.SetupTimeout = opts.OperationTimeout
		boot.StartTimeout = opts.OperationTimeout
	}
}

// Close stops the cluster and, for temporary clusters, removes the
// data directory. It is idempotent and never returns an error; stop
// failures are logged.
func (c *Cluster) Close() {
	c.guard.Close()
	if c.temporary {
		if _, err := fsutil.RemoveTree(c.handle.Settings().DataDir); err != nil {
			logging.Warn("temporary data directory not removed",
				map[string]any{"dir": c.handle.Settings().DataDir, "error": err.Error()})
		}
	}
}

// Host returns the host the server listens on.
func (c *Cluster) Host() string { return c.handle.Host() }

// Port returns the port the server listens on.
func (c *Cluster) Port() uint16 { return c.handle.Port() }

// Username returns the superuser name.
func (c *Cluster) Username() string { return c.handle.Username() }

// Password returns the superuser password in plaintext.
func (c *Cluster) Password() string { return c.handle.Password() }

// Database returns the database name.
func (c *Cluster) Database() string { return c.handle.Database() }

// DSN returns a connection string for database/sql drivers.
func (c *Cluster) DSN() string { return c.handle.DSN() }

// Settings returns a copy of the effective settings.
func (c *Cluster) Settings() model.Settings { return c.handle.Settings() }

// Skippable reports whether err stems from environmental conditions a
// test suite should skip over rather than fail on: binary download
// rate limits, sandboxed filesystems, port exhaustion under parallel
// runs. Validation and usage errors are never skippable.
func Skippable(err error) bool {
	return errclass.Skippable(err)
}

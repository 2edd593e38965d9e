package worker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pgnest-project/pgnest/internal/cache"
	"github.com/pgnest-project/pgnest/internal/datadir"
	"github.com/pgnest-project/pgnest/internal/engine"
	"github.com/pgnest-project/pgnest/internal/envscope"
	"github.com/pgnest-project/pgnest/internal/journal"
	"github.com/pgnest-project/pgnest/pkg/config"
	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/fsutil"
	"github.com/pgnest-project/pgnest/pkg/logging"
	"github.com/pgnest-project/pgnest/pkg/metrics"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// killDelay bounds how long a timed-out child may linger after its
// context fires before it is killed outright.
const killDelay = 5 * time.Second

// Orchestrator runs lifecycle operations per the bootstrap settings:
// in-process for unprivileged callers, via the worker subprocess when
// running as root or when a worker binary is configured.
type Orchestrator struct {
	boot *config.Bootstrap
	log  *logging.Logger
	reg  *metrics.Registry
	jour *journal.Appender
}

// New creates an orchestrator for boot.
func New(boot *config.Bootstrap) *Orchestrator {
	o := &Orchestrator{
		boot: boot,
		log:  logging.Global().WithFields(map[string]any{"component": "orchestrator"}),
		reg:  metrics.Default(),
	}
	if boot.CacheDir != "" {
		o.jour = journal.NewAppender(filepath.Join(boot.CacheDir, "journal.jsonl"))
	}
	return o
}

// Settings returns the current engine settings, including any
// installation-directory re-resolution performed after setup.
func (o *Orchestrator) Settings() model.Settings {
	return o.boot.Settings.Clone()
}

// Run performs op with the given environment overrides, exactly one of
// in-process or subprocess, and classifies the outcome.
func (o *Orchestrator) Run(ctx context.Context, op model.Operation, overrides []model.EnvVar) error {
	o.transition(op, model.StateRequested)
	started := time.Now()

	if err := o.boot.EnsureScratch(); err != nil {
		o.transition(op, model.StateFailed)
		return err
	}

	if op == model.OpSetup {
		o.reuseCachedInstallation()
	}

	// Explicit overrides precede the prepared scope; the scope applies
	// first-set-wins, so earlier entries take priority.
	overrides = append(append([]model.EnvVar{}, overrides...), o.boot.Environment...)

	var err error
	switch o.boot.Mode {
	case model.ModeSubprocess:
		err = o.runSubprocess(ctx, op, overrides)
	default:
		err = o.runInProcess(op, overrides)
	}

	timedOut := errors.Is(err, errclass.ErrOperationTimeout)
	o.reg.Record(string(op), time.Since(started), err != nil, timedOut)

	state := model.StateSucceeded
	switch {
	case timedOut:
		state = model.StateTimedOut
	case err != nil:
		state = model.StateFailed
	}
	o.transition(op, state)
	o.record(op, state, time.Since(started), err)
	if err != nil {
		return err
	}

	// The download may unpack binaries under a version-named
	// subdirectory the unprivileged child chose; pick it up so later
	// operations and callers see the real location.
	if op == model.OpSetup && o.boot.Privileges == model.PrivilegesRoot {
		if dir, rerr := cache.ResolveInstallDir(o.boot.Settings.InstallationDir); rerr == nil {
			o.boot.Settings.InstallationDir = dir
		}
	}
	if op == model.OpSetup {
		o.cacheInstallation()
	}
	return nil
}

// reuseCachedInstallation copies a matching cached installation into
// the installation dir before setup so the engine skips the download.
// Any failure falls through to the normal download path.
func (o *Orchestrator) reuseCachedInstallation() {
	s := &o.boot.Settings
	if o.boot.CacheDir == "" || s.InstallationDir == "" || s.TrustInstallationDir {
		return
	}
	if cache.New(o.boot.CacheDir).TryUse(s.Version, s.InstallationDir) {
		o.log.Info("reusing cached installation",
			map[string]any{"version": s.Version, "dir": s.InstallationDir})
	}
}

// cacheInstallation stores the freshly-set-up binaries for later runs.
// Populate is idempotent, so repeated setups of the same version are
// cheap no-ops.
func (o *Orchestrator) cacheInstallation() {
	s := &o.boot.Settings
	if o.boot.CacheDir == "" || s.TrustInstallationDir {
		return
	}
	dir, err := cache.ResolveInstallDir(s.InstallationDir)
	if err != nil {
		return
	}
	version := s.Version
	if v, ok := cache.VersionFromDirName(filepath.Base(dir)); ok {
		version = v
	}
	if err := cache.New(o.boot.CacheDir).Populate(version, dir); err != nil {
		o.log.Warn("installation not cached", map[string]any{"error": err.Error()})
	}
}

// StopBestEffort runs Stop and swallows any failure. It exists for
// teardown paths where no caller can observe a return value.
func (o *Orchestrator) StopBestEffort(ctx context.Context, overrides []model.EnvVar) {
	if err := o.Run(ctx, model.OpStop, overrides); err != nil {
		o.log.ErrorErr("best-effort stop failed", err, map[string]any{"operation": model.OpStop})
	}
}

func (o *Orchestrator) transition(op model.Operation, state model.OperationState) {
	o.log.Debug("operation state", map[string]any{"operation": string(op), "state": string(state)})
}

// record appends the operation outcome to the on-disk journal. The
// journal is advisory; a write failure must not fail the operation.
func (o *Orchestrator) record(op model.Operation, state model.OperationState, elapsed time.Duration, opErr error) {
	if o.jour == nil {
		return
	}
	details := map[string]any{"duration_ms": elapsed.Milliseconds()}
	if opErr != nil {
		details["error"] = opErr.Error()
	}
	if err := o.jour.Append(op, state, o.boot.Settings.DataDir, details); err != nil {
		o.log.Warn("journal append failed", map[string]any{"error": err.Error()})
	}
}

func (o *Orchestrator) runInProcess(op model.Operation, overrides []model.EnvVar) error {
	guard, err := envscope.Apply(overrides)
	if err != nil {
		return err
	}
	defer guard.Restore()

	o.transition(op, model.StateDispatched)
	if err := Perform(op, o.boot.Settings); err != nil {
		return wrapOperation(op, err)
	}
	return nil
}

func (o *Orchestrator) runSubprocess(ctx context.Context, op model.Operation, overrides []model.EnvVar) error {
	bin := o.boot.WorkerBin
	if err := ValidateWorkerBinary(bin); err != nil {
		return err
	}

	var cred *syscall.Credential
	if o.boot.Privileges == model.PrivilegesRoot {
		var err error
		cred, err = dropCredential()
		if err != nil {
			return err
		}
	}

	payload := &Payload{Environment: overrides, Settings: Snapshot(o.boot.Settings)}
	data, err := payload.Encode()
	if err != nil {
		return err
	}

	configPath := filepath.Join(os.TempDir(), "pgnest-worker-"+uuid.NewString()+".json")
	if err := fsutil.AtomicWrite(configPath, data, 0o600); err != nil {
		return err
	}
	defer os.Remove(configPath)

	if cred != nil {
		// The child runs under the dropped credential; hand it the
		// 0600 payload and the 0700 scratch dirs it uses as HOME, or
		// every root-mode operation dies on a permission error.
		if err := chownForCredential(cred, configPath, o.boot.ScratchDir); err != nil {
			return err
		}
	}

	timeout := o.boot.Timeout(op)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, string(op), configPath)
	cmd.WaitDelay = killDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if cred != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	o.transition(op, model.StateDispatched)
	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return errclass.ErrOperationTimeout.WithMessagef(
			"%s: worker did not finish within %s", op.ContextLabel(), timeout)
	}

	msg := op.ContextLabel()
	if detail := strings.TrimSpace(stderr.String()); detail != "" {
		msg += ": " + detail
	}
	return errclass.ErrOperationFailed.Wrap(runErr, msg)
}

// Perform executes op directly against the engine. Shared by the
// in-process path and the worker binary; recovery of a
// partially-initialised data directory always precedes setup.
func Perform(op model.Operation, s model.Settings) error {
	if op == model.OpSetup {
		if _, err := datadir.Recover(s.DataDir); err != nil {
			return err
		}
	}

	eng := engine.Dispatch()
	switch op {
	case model.OpSetup:
		return eng.Setup(s)
	case model.OpStart:
		return eng.Start(s)
	case model.OpStop:
		return eng.Stop(s)
	}
	return errclass.ErrInvalidArguments.WithMessagef("unknown operation %q", string(op))
}

func wrapOperation(op model.Operation, err error) error {
	var classed *errclass.Error
	if errors.As(err, &classed) {
		return err
	}
	return errclass.ErrOperationFailed.Wrap(err, op.ContextLabel())
}

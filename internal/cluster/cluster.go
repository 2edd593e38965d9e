// Package cluster ties a running database to the code that uses it.
// A Handle carries connection info and is safe to share across
// goroutines; a Guard owns teardown and is closed exactly once by
// whoever started the cluster.
package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pgnest-project/pgnest/internal/worker"
	"github.com/pgnest-project/pgnest/pkg/config"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// Handle is the shared view of a running cluster. All fields are set
// at construction and never mutated, so concurrent readers need no
// locking.
type Handle struct {
	host     string
	port     uint16
	username string
	password string
	database string
	settings model.Settings
}

func newHandle(s model.Settings) *Handle {
	return &Handle{
		host:     s.Host,
		port:     s.Port,
		username: s.Username,
		password: s.Password,
		database: s.Database,
		settings: s.Clone(),
	}
}

func (h *Handle) Host() string     { return h.host }
func (h *Handle) Port() uint16     { return h.port }
func (h *Handle) Username() string { return h.username }
func (h *Handle) Password() string { return h.password }
func (h *Handle) Database() string { return h.database }

// Settings returns a copy; mutating it does not affect the cluster.
func (h *Handle) Settings() model.Settings { return h.settings.Clone() }

// DSN renders a key/value connection string suitable for lib/pq and
// pgx. The password appears in plaintext here and nowhere else.
func (h *Handle) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		h.host, h.port, h.username, h.password, h.database)
}

// Guard owns the teardown of a started cluster. Close stops the
// cluster best-effort and is idempotent.
type Guard struct {
	once sync.Once
	orch *worker.Orchestrator
	rt   Runtime
}

// Close stops the cluster. Stop failures are logged, not returned:
// teardown runs in defers where nobody can act on an error.
func (g *Guard) Close() {
	g.once.Do(func() {
		ctx, cancel := g.rt.operationContext()
		defer cancel()
		g.orch.StopBestEffort(ctx, nil)
	})
}

// Runtime decides who owns the deadline for cluster operations. The
// two implementations are the only ones possible; the unexported
// method seals the interface.
type Runtime interface {
	operationContext() (context.Context, context.CancelFunc)
}

// OwnedRuntime creates and owns a fresh deadline context per
// operation. Zero Timeout means no deadline.
type OwnedRuntime struct {
	Timeout time.Duration
}

func (r OwnedRuntime) operationContext() (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), r.Timeout)
}

// CallerRuntime borrows the caller's context; its deadline and
// cancellation apply unchanged.
type CallerRuntime struct {
	Ctx context.Context
}

func (r CallerRuntime) operationContext() (context.Context, context.CancelFunc) {
	ctx := r.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithCancel(ctx)
}

// Launch sets up and starts a cluster described by boot. On success
// the returned Guard must be closed by the caller; on failure any
// partially-started state has already been stopped best-effort.
func Launch(rt Runtime, boot *config.Bootstrap) (*Handle, *Guard, error) {
	if rt == nil {
		rt = OwnedRuntime{}
	}
	orch := worker.New(boot)

	if err := runOp(rt, orch, model.OpSetup); err != nil {
		return nil, nil, err
	}
	if err := runOp(rt, orch, model.OpStart); err != nil {
		ctx, cancel := rt.operationContext()
		orch.StopBestEffort(ctx, nil)
		cancel()
		return nil, nil, err
	}

	return newHandle(orch.Settings()), &Guard{orch: orch, rt: rt}, nil
}

func runOp(rt Runtime, orch *worker.Orchestrator, op model.Operation) error {
	ctx, cancel := rt.operationContext()
	defer cancel()
	return orch.Run(ctx, op, nil)
}

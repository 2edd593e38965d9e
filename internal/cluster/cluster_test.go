package cluster

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgnest-project/pgnest/internal/engine"
	"github.com/pgnest-project/pgnest/pkg/config"
	"github.com/pgnest-project/pgnest/pkg/model"
)

type countingEngine struct {
	mu       sync.Mutex
	setups   int
	starts   int
	stops    int
	startErr error
}

func (c *countingEngine) Setup(model.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setups++
	return nil
}

func (c *countingEngine) Start(model.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	return c.startErr
}

func (c *countingEngine) Stop(model.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func testBootstrap(t *testing.T) *config.Bootstrap {
	t.Helper()
	return &config.Bootstrap{
		Privileges: model.PrivilegesUnprivileged,
		Mode:       model.ModeInProcess,
		Settings: model.Settings{
			Version:  "16",
			Host:     "localhost",
			Port:     15432,
			Username: "postgres",
			Password: "hunter2",
			Database: "postgres",
			DataDir:  filepath.Join(t.TempDir(), "data"),
		},
		SetupTimeout:    time.Minute,
		StartTimeout:    time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

func TestLaunch_SetupThenStart(t *testing.T) {
	eng := &countingEngine{}
	defer engine.Override(eng)()

	handle, guard, err := Launch(OwnedRuntime{}, testBootstrap(t))
	require.NoError(t, err)
	require.NotNil(t, handle)
	require.NotNil(t, guard)

	assert.Equal(t, 1, eng.setups)
	assert.Equal(t, 1, eng.starts)
	assert.Equal(t, 0, eng.stops)

	guard.Close()
	assert.Equal(t, 1, eng.stops)
}

func TestLaunch_StartFailureStopsBestEffort(t *testing.T) {
	eng := &countingEngine{startErr: assert.AnError}
	defer engine.Override(eng)()

	handle, guard, err := Launch(OwnedRuntime{}, testBootstrap(t))
	require.Error(t, err)
	assert.Nil(t, handle)
	assert.Nil(t, guard)
	assert.Equal(t, 1, eng.stops, "partially-started cluster gets stopped")
}

func TestGuard_CloseIdempotent(t *testing.T) {
	eng := &countingEngine{}
	defer engine.Override(eng)()

	_, guard, err := Launch(OwnedRuntime{}, testBootstrap(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, eng.stops, "concurrent Close runs Stop once")
}

func TestHandle_ConnectionInfo(t *testing.T) {
	eng := &countingEngine{}
	defer engine.Override(eng)()

	boot := testBootstrap(t)
	handle, guard, err := Launch(OwnedRuntime{}, boot)
	require.NoError(t, err)
	defer guard.Close()

	assert.Equal(t, "localhost", handle.Host())
	assert.Equal(t, uint16(15432), handle.Port())
	assert.Equal(t, "postgres", handle.Username())
	assert.Equal(t, "postgres", handle.Database())

	dsn := handle.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=15432")
	assert.Contains(t, dsn, "password=hunter2")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestHandle_SettingsIsACopy(t *testing.T) {
	eng := &countingEngine{}
	defer engine.Override(eng)()

	handle, guard, err := Launch(OwnedRuntime{}, testBootstrap(t))
	require.NoError(t, err)
	defer guard.Close()

	s := handle.Settings()
	s.Host = "mutated"
	assert.Equal(t, "localhost", handle.Host())
	assert.Equal(t, "localhost", handle.Settings().Host)
}

func TestOwnedRuntime_ZeroTimeoutHasNoDeadline(t *testing.T) {
	ctx, cancel := OwnedRuntime{}.operationContext()
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)
}

func TestOwnedRuntime_TimeoutSetsDeadline(t *testing.T) {
	ctx, cancel := OwnedRuntime{Timeout: time.Minute}.operationContext()
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestCallerRuntime_BorrowsDeadline(t *testing.T) {
	parent, parentCancel := context.WithTimeout(context.Background(), time.Minute)
	defer parentCancel()

	ctx, cancel := CallerRuntime{Ctx: parent}.operationContext()
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	parentDeadline, _ := parent.Deadline()
	assert.Equal(t, parentDeadline, deadline)
}

func TestCallerRuntime_NilContext(t *testing.T) {
	ctx, cancel := CallerRuntime{}.operationContext()
	defer cancel()
	assert.NoError(t, ctx.Err())
}

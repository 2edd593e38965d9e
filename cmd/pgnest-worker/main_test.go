package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgnest-project/pgnest/internal/engine"
	"github.com/pgnest-project/pgnest/internal/worker"
	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/model"
)

type nopEngine struct{ ops []model.Operation }

func (n *nopEngine) Setup(model.Settings) error { n.ops = append(n.ops, model.OpSetup); return nil }
func (n *nopEngine) Start(model.Settings) error { n.ops = append(n.ops, model.OpStart); return nil }
func (n *nopEngine) Stop(model.Settings) error  { n.ops = append(n.ops, model.OpStop); return nil }

func writeConfig(t *testing.T) string {
	t.Helper()
	p := &worker.Payload{
		Settings: worker.Snapshot(model.Settings{
			Version: "16",
			DataDir: filepath.Join(t.TempDir(), "data"),
		}),
	}
	data, err := p.Encode()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun_PerformsOperation(t *testing.T) {
	eng := &nopEngine{}
	defer engine.Override(eng)()

	require.NoError(t, run([]string{"start", writeConfig(t)}))
	assert.Equal(t, []model.Operation{model.OpStart}, eng.ops)
}

func TestRun_TooFewArguments(t *testing.T) {
	for _, args := range [][]string{nil, {}, {"start"}} {
		err := run(args)
		require.Error(t, err)
		assert.ErrorIs(t, err, errclass.ErrInvalidArguments)
		assert.Contains(t, err.Error(), "usage")
	}
}

func TestRun_ExtraArgumentRejected(t *testing.T) {
	err := run([]string{"start", "/tmp/c.json", "surplus"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrInvalidArguments)
	assert.Contains(t, err.Error(), "unexpected extra argument")
	assert.Contains(t, err.Error(), "surplus")
}

func TestRun_NonUTF8ConfigPath(t *testing.T) {
	err := run([]string{"start", "bad\xff\xfepath"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UTF-8")
	assert.Contains(t, err.Error(), "config")
}

func TestRun_UnknownOperation(t *testing.T) {
	err := run([]string{"restart", writeConfig(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrInvalidArguments)
}

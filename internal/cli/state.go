package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pgnest-project/pgnest/pkg/fsutil"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// clusterState records a cluster started by `pgnest up` so that later
// `down` and `status` invocations find it. It lives next to the
// configuration file.
type clusterState struct {
	Name      string         `json:"name,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Settings  model.Settings `json:"settings"`
}

func statePath(dir string) string {
	return filepath.Join(dir, ".pgnest", "state.json")
}

func saveState(dir string, st *clusterState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	path := statePath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return fsutil.AtomicWrite(path, data, 0o600)
}

func loadState(dir string) (*clusterState, bool) {
	data, err := os.ReadFile(statePath(dir))
	if err != nil {
		return nil, false
	}
	var st clusterState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false
	}
	return &st, true
}

func clearState(dir string) {
	os.Remove(statePath(dir))
}

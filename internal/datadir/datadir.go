// Package datadir validates PostgreSQL data directories and recovers
// from partially-initialised state left behind by an interrupted
// initdb.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pgnest-project/pgnest/pkg/fsutil"
	"github.com/pgnest-project/pgnest/pkg/logging"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// markerFile is written late during initialisation, so its presence
// proves initdb completed rather than merely started.
const markerFile = "global/pg_control"

// IsValid reports whether dir holds a completed data directory.
func IsValid(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, markerFile))
	return err == nil && info.Mode().IsRegular()
}

// Recover removes partially-initialised state so the directory can be
// re-initialised. A missing directory, a valid one, and an
// empty-but-existing one (a fresh mount point awaiting initialisation)
// are all left alone.
func Recover(dir string) (model.RemovalOutcome, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return model.Missing, nil
	}
	if err != nil {
		return model.Missing, fmt.Errorf("stat data directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return model.Missing, fmt.Errorf("data directory path %s is not a directory", dir)
	}

	if IsValid(dir) {
		return model.Missing, nil
	}

	empty, err := isEmpty(dir)
	if err != nil {
		return model.Missing, err
	}
	if empty {
		return model.Missing, nil
	}

	logging.Warn("removing partially-initialised data directory", map[string]any{"dir": dir})
	return fsutil.RemoveTree(dir)
}

func isEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read data directory %s: %w", dir, err)
	}
	return len(entries) == 0, nil
}

package fsutil

import (
	"fmt"
	"os"

	"github.com/pgnest-project/pgnest/pkg/model"
	"github.com/pgnest-project/pgnest/pkg/pathutil"
)

// RemoveTree deletes path recursively. It refuses empty, root, and
// parent-traversal paths before touching the filesystem, and reports
// whether anything was actually deleted.
func RemoveTree(path string) (model.RemovalOutcome, error) {
	if err := pathutil.ValidateRemovable(path); err != nil {
		return model.Missing, err
	}

	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return model.Missing, nil
		}
		return model.Missing, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.RemoveAll(path); err != nil {
		return model.Missing, fmt.Errorf("remove %s: %w", path, err)
	}
	return model.Removed, nil
}

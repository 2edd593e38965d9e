// Package pathutil provides path and name validation utilities for pgnest.
package pathutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/pgnest-project/pgnest/pkg/errclass"
)

var clusterNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateEnvName checks that name can be used as an environment
// variable name in a scope: non-empty and free of the key/value
// separator. Rejection happens before any mutation.
func ValidateEnvName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("environment variable name must not be empty")
	}
	if strings.Contains(name, "=") {
		return errclass.ErrNameInvalid.WithMessagef("environment variable name must not contain '=': %q", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("environment variable name must not contain control characters: %q", name)
		}
	}
	return nil
}

// ValidateClusterName checks a user-chosen cluster name and returns
// its canonical form. Names are NFC-normalized before matching so
// visually identical names collide.
func ValidateClusterName(name string) (string, error) {
	if name == "" {
		return "", errclass.ErrNameInvalid.WithMessage("cluster name must not be empty")
	}
	name = norm.NFC.String(name)
	if strings.Contains(name, "..") {
		return "", errclass.ErrNameInvalid.WithMessagef("cluster name must not contain '..': %s", name)
	}
	if !clusterNameRegex.MatchString(name) {
		return "", errclass.ErrNameInvalid.WithMessagef("cluster name must match [a-zA-Z0-9._-]+: %s", name)
	}
	return name, nil
}

// ValidateRemovable rejects paths that must never be handed to
// recursive removal: the empty path, the filesystem root, and anything
// containing a parent-traversal component. These indicate a programming
// error in the caller, not a filesystem race.
func ValidateRemovable(path string) error {
	if path == "" {
		return errclass.ErrPathInvalid.WithMessage("refusing to remove empty path")
	}
	if filepath.Clean(path) == string(filepath.Separator) {
		return errclass.ErrPathInvalid.WithMessage("refusing to remove filesystem root")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return errclass.ErrPathInvalid.WithMessagef("refusing to remove path with parent traversal: %s", path)
		}
	}
	return nil
}

// Package cache locates previously-unpacked PostgreSQL installations
// so repeated test runs skip the network download, and resolves which
// installed directory actually holds the binaries after a download.
package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"golang.org/x/sync/singleflight"

	"github.com/pgnest-project/pgnest/pkg/fsutil"
	"github.com/pgnest-project/pgnest/pkg/logging"
	"github.com/pgnest-project/pgnest/pkg/progress"
)

// requiredBinaries is the layout a usable installation must contain.
var requiredBinaries = []string{"initdb", "pg_ctl", "postgres"}

// CachedInstallation is a version-matched, already-unpacked install.
type CachedInstallation struct {
	Version *goversion.Version
	Dir     string
}

// Cache manages unpacked installations under one root directory, one
// version-named subdirectory each.
type Cache struct {
	root     string
	group    singleflight.Group
	Progress progress.Callback
}

// New creates a cache rooted at root.
func New(root string) *Cache {
	return &Cache{root: root}
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Check finds the newest cached installation satisfying requirement.
// A candidate must carry the expected binary layout; anything else is
// skipped, not fatal.
func (c *Cache) Check(requirement string) (*CachedInstallation, bool) {
	var best *CachedInstallation
	for _, inst := range c.List() {
		if satisfies(requirement, inst.Version) {
			best = inst // List is sorted ascending
		}
	}
	return best, best != nil
}

// List returns every usable cached installation, oldest version first.
func (c *Cache) List() []*CachedInstallation {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil
	}

	var installs []*CachedInstallation
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := goversion.NewVersion(e.Name())
		if err != nil {
			continue
		}
		dir := filepath.Join(c.root, e.Name())
		if !hasBinaryLayout(dir) {
			continue
		}
		installs = append(installs, &CachedInstallation{Version: v, Dir: dir})
	}
	sort.Slice(installs, func(i, j int) bool {
		return installs[i].Version.LessThan(installs[j].Version)
	})
	return installs
}

// TryUse copies a cached installation satisfying requirement into
// target. It returns true only when the reuse fully succeeded; callers
// fall back to the download on false.
func (c *Cache) TryUse(requirement, target string) bool {
	cached, ok := c.Check(requirement)
	if !ok {
		return false
	}
	if err := VerifyManifest(cached.Dir); err != nil {
		logging.Warn("cached installation failed verification",
			map[string]any{"cached": cached.Dir, "error": err.Error()})
		return false
	}
	if hasBinaryLayout(target) {
		return true
	}
	if err := c.copyTree(cached.Dir, target); err != nil {
		logging.Warn("cache reuse failed, falling back to download",
			map[string]any{"cached": cached.Dir, "target": target, "error": err.Error()})
		fsutil.RemoveTree(target)
		return false
	}
	logging.Info("reused cached installation",
		map[string]any{"version": cached.Version.String(), "target": target})
	return true
}

// Populate stores the installation at source under version. Populating
// an already-populated cache is a no-op; concurrent populations of the
// same version are deduplicated.
func (c *Cache) Populate(version, source string) error {
	_, err, _ := c.group.Do(version, func() (any, error) {
		dest := filepath.Join(c.root, version)
		if hasBinaryLayout(dest) {
			return nil, nil
		}
		if !hasBinaryLayout(source) {
			return nil, fmt.Errorf("populate cache: %s does not contain a PostgreSQL installation", source)
		}
		if err := os.MkdirAll(c.root, 0o755); err != nil {
			return nil, fmt.Errorf("populate cache: %w", err)
		}

		// Stage under a temp name so a crashed copy never looks like
		// a complete entry.
		staging, err := os.MkdirTemp(c.root, ".populate-*")
		if err != nil {
			return nil, fmt.Errorf("populate cache staging: %w", err)
		}
		defer fsutil.RemoveTree(staging)

		staged := filepath.Join(staging, version)
		if err := c.copyTree(source, staged); err != nil {
			return nil, fmt.Errorf("populate cache copy: %w", err)
		}
		if err := WriteManifest(staged); err != nil {
			return nil, fmt.Errorf("populate cache manifest: %w", err)
		}
		if err := os.Rename(staged, dest); err != nil {
			if hasBinaryLayout(dest) {
				return nil, nil // lost a benign race with another process
			}
			return nil, fmt.Errorf("populate cache rename: %w", err)
		}
		return nil, nil
	})
	return err
}

func satisfies(requirement string, v *goversion.Version) bool {
	if strings.ContainsAny(requirement, "<>=~^!") {
		constraint, err := goversion.NewConstraint(requirement)
		return err == nil && constraint.Check(v)
	}
	// A bare version is a prefix requirement: "16" accepts 16.4.0.
	req, err := goversion.NewVersion(requirement)
	if err != nil {
		return false
	}
	want := req.Segments()
	got := v.Segments()
	for i, n := 0, len(strings.Split(requirement, ".")); i < n && i < len(want); i++ {
		if i >= len(got) || want[i] != got[i] {
			return false
		}
	}
	return true
}

func hasBinaryLayout(dir string) bool {
	for _, bin := range requiredBinaries {
		info, err := os.Stat(filepath.Join(dir, "bin", bin))
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

func (c *Cache) copyTree(src, dst string) error {
	var paths []string
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}

	p := progress.New("cache-copy", len(paths), c.Progress)
	for _, path := range paths {
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}

		switch {
		case info.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return err
			}
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Symlink(link, target); err != nil {
				return err
			}
		default:
			if err := copyFile(path, target, info.Mode().Perm()); err != nil {
				return err
			}
		}
		p.Increment(rel)
	}
	p.Done("copied")
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

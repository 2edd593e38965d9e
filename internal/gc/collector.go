// Package gc reclaims disk space left behind by earlier runs: stale
// scratch directories, abandoned temporary data directories, and cache
// entries beyond the retention count.
package gc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pgnest-project/pgnest/internal/cache"
	"github.com/pgnest-project/pgnest/pkg/fsutil"
	"github.com/pgnest-project/pgnest/pkg/logging"
)

// Policy controls what a collection run keeps.
type Policy struct {
	// KeepInstallations is how many cached installations survive,
	// newest versions first.
	KeepInstallations int

	// MinAge protects recently-touched scratch and data directories;
	// anything younger is assumed to belong to a live run.
	MinAge time.Duration
}

// DefaultPolicy keeps the two newest installations and anything
// touched within the last day.
func DefaultPolicy() Policy {
	return Policy{KeepInstallations: 2, MinAge: 24 * time.Hour}
}

// Plan lists everything a Run with the same inputs would delete.
type Plan struct {
	CreatedAt  time.Time `json:"created_at"`
	ScratchDir []string  `json:"scratch_dirs"`
	DataDirs   []string  `json:"data_dirs"`
	CacheDirs  []string  `json:"cache_dirs"`
}

// Empty reports whether the plan would delete nothing.
func (p *Plan) Empty() bool {
	return len(p.ScratchDir) == 0 && len(p.DataDirs) == 0 && len(p.CacheDirs) == 0
}

// Collector plans and executes cleanup over a cache root and the
// system temp directory.
type Collector struct {
	cacheRoot string
	tempRoot  string
	policy    Policy
	log       *logging.Logger
}

func NewCollector(cacheRoot string, policy Policy) *Collector {
	return &Collector{
		cacheRoot: cacheRoot,
		tempRoot:  os.TempDir(),
		policy:    policy,
		log:       logging.Global().WithFields(map[string]any{"component": "gc"}),
	}
}

// Plan scans without deleting anything.
func (c *Collector) Plan() (*Plan, error) {
	plan := &Plan{CreatedAt: time.Now().UTC()}

	entries, err := os.ReadDir(c.tempRoot)
	if err != nil {
		return nil, fmt.Errorf("scan temp dir: %w", err)
	}
	cutoff := time.Now().Add(-c.policy.MinAge)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		var bucket *[]string
		switch {
		case strings.HasPrefix(name, "pgnest-scratch-"):
			bucket = &plan.ScratchDir
		case strings.HasPrefix(name, "pgnest-") && !strings.HasPrefix(name, "pgnest-worker-"):
			bucket = &plan.DataDirs
		default:
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		*bucket = append(*bucket, filepath.Join(c.tempRoot, name))
	}

	if c.cacheRoot != "" && c.policy.KeepInstallations >= 0 {
		installs := cache.New(c.cacheRoot).List()
		// List is sorted ascending; everything below the keep window goes.
		sort.Slice(installs, func(i, j int) bool {
			return installs[j].Version.LessThan(installs[i].Version)
		})
		for i, inst := range installs {
			if i >= c.policy.KeepInstallations {
				plan.CacheDirs = append(plan.CacheDirs, inst.Dir)
			}
		}
	}

	return plan, nil
}

// Run executes plan. Each target is validated by the removal guard;
// one failed removal does not stop the rest.
func (c *Collector) Run(plan *Plan) error {
	var firstErr error
	for _, dir := range append(append(append([]string{}, plan.ScratchDir...), plan.DataDirs...), plan.CacheDirs...) {
		outcome, err := fsutil.RemoveTree(dir)
		if err != nil {
			c.log.Warn("gc removal failed", map[string]any{"dir": dir, "error": err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.log.Debug("gc removed", map[string]any{"dir": dir, "outcome": string(outcome)})
	}
	return firstErr
}

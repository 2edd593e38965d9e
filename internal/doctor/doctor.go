package doctor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pgnest-project/pgnest/internal/cache"
	"github.com/pgnest-project/pgnest/internal/datadir"
	"github.com/pgnest-project/pgnest/internal/journal"
	"github.com/pgnest-project/pgnest/internal/worker"
	"github.com/pgnest-project/pgnest/pkg/config"
	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

// Doctor inspects a bootstrap for problems that would surface later
// as opaque operation failures.
type Doctor struct {
	boot *config.Bootstrap
}

func NewDoctor(boot *config.Bootstrap) *Doctor {
	return &Doctor{boot: boot}
}

// Check runs all diagnostic checks. Strict mode additionally scans
// the installation cache inventory.
func (d *Doctor) Check(strict bool) (*Result, error) {
	result := &Result{Healthy: true}

	d.checkWorkerBinary(result)
	d.checkDataDir(result)
	d.checkInstallationDir(result)
	d.checkEnvironment(result)
	d.checkOrphanPayloads(result)
	if strict {
		d.checkCacheInventory(result)
		d.checkJournal(result)
	}

	return result, nil
}

func (d *Doctor) checkWorkerBinary(result *Result) {
	if d.boot.Mode != model.ModeSubprocess {
		return
	}
	err := worker.ValidateWorkerBinary(d.boot.WorkerBin)
	if err == nil {
		return
	}
	severity := "critical"
	if errors.Is(err, errclass.ErrWorkerNotExecutable) {
		severity = "error"
	}
	result.Findings = append(result.Findings, Finding{
		Category:    "worker",
		Description: fmt.Sprintf("worker binary unusable: %v", err),
		Severity:    severity,
		Path:        d.boot.WorkerBin,
	})
	result.Healthy = false
}

func (d *Doctor) checkDataDir(result *Result) {
	dir := d.boot.Settings.DataDir
	if dir == "" {
		result.Findings = append(result.Findings, Finding{
			Category:    "datadir",
			Description: "no data directory configured",
			Severity:    "critical",
		})
		result.Healthy = false
		return
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return // fresh setup will create it
	}
	if datadir.IsValid(dir) {
		return
	}
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		return // empty directory is fine
	}
	result.Findings = append(result.Findings, Finding{
		Category:    "datadir",
		Description: "data directory exists but is not an initialised cluster; setup will remove and recreate it",
		Severity:    "warning",
		Path:        dir,
	})
}

func (d *Doctor) checkInstallationDir(result *Result) {
	dir := d.boot.Settings.InstallationDir
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		result.Findings = append(result.Findings, Finding{
			Category:    "installation",
			Description: "installation directory does not exist; binaries will be downloaded",
			Severity:    "info",
			Path:        dir,
		})
		return
	}
	if _, err := cache.ResolveInstallDir(dir); err != nil {
		result.Findings = append(result.Findings, Finding{
			Category:    "installation",
			Description: fmt.Sprintf("installation directory has no usable binaries: %v", err),
			Severity:    "warning",
			Path:        dir,
		})
	}
}

func (d *Doctor) checkEnvironment(result *Result) {
	if d.boot.Privileges == model.PrivilegesRoot && d.boot.Mode != model.ModeSubprocess {
		result.Findings = append(result.Findings, Finding{
			Category:    "privileges",
			Description: "running as root without a worker subprocess; the server refuses to start as uid 0",
			Severity:    "critical",
		})
		result.Healthy = false
	}

	// Operations materialise the scratch dirs on demand; the doctor
	// tries the same thing so a read-only temp dir surfaces here.
	if err := d.boot.EnsureScratch(); err != nil {
		result.Findings = append(result.Findings, Finding{
			Category:    "environment",
			Description: fmt.Sprintf("scratch directory cannot be created: %v", err),
			Severity:    "error",
			Path:        d.boot.ScratchDir,
		})
		result.Healthy = false
	}
}

func (d *Doctor) checkOrphanPayloads(result *Result) {
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "pgnest-worker-") && strings.HasSuffix(name, ".json") {
			result.Findings = append(result.Findings, Finding{
				Category:    "tmp",
				Description: fmt.Sprintf("orphan worker payload: %s", name),
				Severity:    "info",
				Path:        filepath.Join(os.TempDir(), name),
			})
		}
	}
}

func (d *Doctor) checkJournal(result *Result) {
	if d.boot.CacheDir == "" {
		return
	}
	path := filepath.Join(d.boot.CacheDir, "journal.jsonl")
	if err := journal.NewAppender(path).Verify(); err != nil {
		result.Findings = append(result.Findings, Finding{
			Category:    "journal",
			Description: fmt.Sprintf("operation journal failed verification: %v", err),
			Severity:    "warning",
			Path:        path,
		})
	}
}

func (d *Doctor) checkCacheInventory(result *Result) {
	root := d.boot.CacheDir
	if root == "" {
		return
	}
	c := cache.New(root)
	if _, ok := c.Check(d.boot.Settings.Version); !ok {
		result.Findings = append(result.Findings, Finding{
			Category:    "cache",
			Description: fmt.Sprintf("no cached installation satisfies version %q", d.boot.Settings.Version),
			Severity:    "info",
			Path:        root,
		})
	}
}

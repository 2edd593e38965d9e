package worker

import (
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/pgnest-project/pgnest/pkg/errclass"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// DetectPrivileges samples the effective user id.
func DetectPrivileges() model.ExecutionPrivileges {
	if unix.Geteuid() == 0 {
		return model.PrivilegesRoot
	}
	return model.PrivilegesUnprivileged
}

// ValidateWorkerBinary checks the worker binary path eagerly, before
// any dispatch: it must exist, be a regular file, and be executable.
// Each failure surfaces as its own class instead of a generic spawn
// error later.
func ValidateWorkerBinary(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errclass.ErrWorkerMissing.WithMessagef("worker binary not found at %s", path)
		}
		return errclass.ErrWorkerMissing.Wrap(err, path)
	}
	if !info.Mode().IsRegular() {
		return errclass.ErrWorkerNotFile.WithMessagef("worker binary path %s is not a regular file", path)
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return errclass.ErrWorkerNotExecutable.WithMessagef("worker binary %s is not executable", path)
	}
	return nil
}

// dropTargets are the accounts tried, in order, when the orchestrator
// runs as root and must drop privileges in the child.
var dropTargets = []string{"postgres", "nobody"}

// dropCredential resolves the credential the worker child runs under.
func dropCredential() (*syscall.Credential, error) {
	for _, name := range dropTargets {
		u, err := user.Lookup(name)
		if err != nil {
			continue
		}
		uid, err := strconv.ParseUint(u.Uid, 10, 32)
		if err != nil {
			continue
		}
		gid, err := strconv.ParseUint(u.Gid, 10, 32)
		if err != nil {
			continue
		}
		return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
	}
	return nil, errclass.ErrPrivilege.WithMessage("no unprivileged account available to drop to")
}

// chownForCredential hands the given paths, recursing into
// directories, to the credential the worker child drops to. Empty and
// missing paths are skipped.
func chownForCredential(cred *syscall.Credential, paths ...string) error {
	uid, gid := int(cred.Uid), int(cred.Gid)
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(path string, _ fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			return os.Chown(path, uid, gid)
		})
		if err != nil && !os.IsNotExist(err) {
			return errclass.ErrPrivilege.Wrap(err, "hand worker files to the dropped credential")
		}
	}
	return nil
}

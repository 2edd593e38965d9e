// Package envscope serialises temporary mutations of process
// environment variables. A scope records the prior value of every
// variable it touches, applies its overrides, and restores on Restore.
// Scopes nest: inner overrides win until restored, and restoration is
// strictly LIFO even when guards are released out of order.
//
// One process-wide exclusive lock is the single serialisation point for
// all environment mutation; at most one root scope is open at any
// instant. Reentrancy is explicit: nested scopes are opened through an
// existing guard, never by re-acquiring the lock, which keeps the
// depth/stack/lock discipline auditable.
package envscope

import (
	"fmt"
	"os"
	"sync"

	"github.com/pgnest-project/pgnest/pkg/model"
	"github.com/pgnest-project/pgnest/pkg/pathutil"
)

var (
	// procMu is the process-wide exclusive lock. Held from the first
	// Apply (depth 0→1) until the last Restore (depth 1→0).
	procMu sync.Mutex

	// active is the open session; non-nil exactly while procMu is
	// held by a scope chain.
	active *session
)

// session tracks one chain of nested scopes.
type session struct {
	depth int
	stack []*frame
}

// frame is the saved state of one scope.
type frame struct {
	saved    []savedVar
	finished bool
}

// savedVar records a variable's value before this scope touched it.
type savedVar struct {
	name    string
	value   string
	present bool
}

// Guard represents one open scope. Restoring it (typically deferred)
// undoes the scope's overrides once every scope above it has finished.
type Guard struct {
	s *session
	f *frame
}

// Apply opens a root scope: validates every name, acquires the
// process-wide lock, records prior values, and applies the overrides.
// The returned guard must be restored, usually via defer, even when the
// calling code panics.
func Apply(vars []model.EnvVar) (*Guard, error) {
	if err := validate(vars); err != nil {
		return nil, err
	}

	procMu.Lock()
	if active != nil {
		procMu.Unlock()
		panic("envscope: lock acquired while a session is already active")
	}
	s := &session{}
	active = s
	return s.push(vars), nil
}

// Apply opens a nested scope inside g's session. The lock is already
// held; no variable outside this chain can observe intermediate state.
func (g *Guard) Apply(vars []model.EnvVar) (*Guard, error) {
	if err := validate(vars); err != nil {
		return nil, err
	}
	if g.s == nil || active != g.s {
		panic("envscope: nested apply on a closed session")
	}
	return g.s.push(vars), nil
}

// Restore marks this scope finished. Finished frames collapse from the
// top of the stack downward, restoring saved values in reverse
// application order; a frame released out of order stays marked until
// everything above it finishes. Restore is idempotent.
func (g *Guard) Restore() {
	if g.f.finished {
		return
	}
	g.f.finished = true
	g.s.collapse()
}

// Finished reports whether this guard has been restored.
func (g *Guard) Finished() bool {
	return g.f.finished
}

func validate(vars []model.EnvVar) error {
	for _, v := range vars {
		if err := pathutil.ValidateEnvName(v.Name); err != nil {
			return err
		}
	}
	return nil
}

// push applies vars as a new frame. The previous value of each key is
// recorded exactly once per frame; the first override of a key within
// one scope wins.
func (s *session) push(vars []model.EnvVar) *Guard {
	f := &frame{}
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v.Name] {
			continue
		}
		seen[v.Name] = true

		prev, present := os.LookupEnv(v.Name)
		f.saved = append(f.saved, savedVar{name: v.Name, value: prev, present: present})

		if value, ok := v.Value.Expose(); ok {
			os.Setenv(v.Name, value)
		} else {
			os.Unsetenv(v.Name)
		}
	}

	s.stack = append(s.stack, f)
	s.depth++
	s.check()
	return &Guard{s: s, f: f}
}

// collapse pops finished frames off the top of the stack, restoring
// each in reverse order, and releases the lock when the stack empties.
func (s *session) collapse() {
	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		if !top.finished {
			break
		}
		for i := len(top.saved) - 1; i >= 0; i-- {
			sv := top.saved[i]
			if sv.present {
				os.Setenv(sv.name, sv.value)
			} else {
				os.Unsetenv(sv.name)
			}
		}
		s.stack = s.stack[:len(s.stack)-1]
		s.depth--
	}
	s.check()

	if s.depth == 0 {
		if active != s {
			panic("envscope: releasing a session that is not active")
		}
		active = nil
		procMu.Unlock()
	}
}

// check panics when the depth counter and stack desynchronise. That
// state indicates lifecycle corruption in the guard discipline itself,
// not a recoverable runtime condition.
func (s *session) check() {
	if s.depth != len(s.stack) || s.depth < 0 {
		panic(fmt.Sprintf("envscope: depth %d does not match stack size %d", s.depth, len(s.stack)))
	}
}

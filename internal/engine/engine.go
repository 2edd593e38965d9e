// Package engine binds the external embedded-PostgreSQL engine behind
// a small interface: three lifecycle operations taking settings and
// returning an error. A guarded hook slot lets tests swap the engine
// for a fake without ambient monkey-patching.
package engine

import (
	"sync"

	"github.com/pgnest-project/pgnest/pkg/model"
)

// Engine performs PostgreSQL lifecycle operations. Each call may take
// seconds to minutes; callers own timeout enforcement.
type Engine interface {
	// Setup downloads binaries if needed and initialises the data
	// directory.
	Setup(s model.Settings) error

	// Start launches the server described by s.
	Start(s model.Settings) error

	// Stop shuts the server down.
	Stop(s model.Settings) error
}

var (
	hookMu sync.Mutex
	hook   Engine
)

// Override installs e as the dispatch target until the returned restore
// function runs. Install for the scope of a test; always defer restore.
func Override(e Engine) (restore func()) {
	hookMu.Lock()
	prev := hook
	hook = e
	hookMu.Unlock()

	return func() {
		hookMu.Lock()
		hook = prev
		hookMu.Unlock()
	}
}

// Dispatch returns the engine operations route to: the installed
// override if one exists, otherwise the embedded engine.
func Dispatch() Engine {
	hookMu.Lock()
	defer hookMu.Unlock()
	if hook != nil {
		return hook
	}
	return defaultEngine
}

var defaultEngine Engine = newEmbedded()

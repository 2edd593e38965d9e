// Package color provides terminal color output for the pgnest CLI.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"fmt"
	"os"
	"sync"
)

var state struct {
	mu      sync.Mutex
	init    bool
	enabled bool
}

// Init decides whether color output is enabled. It runs once; later
// calls are no-ops unless Disable is used.
func Init(noColorFlag bool) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.init {
		return
	}
	state.init = true

	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return
	}
	if os.Getenv("TERM") == "dumb" {
		return
	}
	if noColorFlag {
		return
	}
	state.enabled = true
}

// Enabled reports whether color output is on.
func Enabled() bool {
	Init(false)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.enabled
}

// Disable turns color output off.
func Disable() {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.init = true
	state.enabled = false
}

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return fmt.Sprintf("\033[%sm%s\033[0m", code, s)
}

// Green renders s in green when enabled.
func Green(s string) string { return wrap("32", s) }

// Red renders s in red when enabled.
func Red(s string) string { return wrap("31", s) }

// Yellow renders s in yellow when enabled.
func Yellow(s string) string { return wrap("33", s) }

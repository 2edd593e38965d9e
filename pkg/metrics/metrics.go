// Package metrics records in-process timing of lifecycle operations.
// The registry feeds end-of-run summaries; it is not an exporter.
package metrics

import (
	"sync"
	"time"
)

// OperationStats aggregates outcomes for one operation kind.
type OperationStats struct {
	Count     int           `json:"count"`
	Failures  int           `json:"failures"`
	Timeouts  int           `json:"timeouts"`
	TotalTime time.Duration `json:"total_time_ns"`
	LastTime  time.Duration `json:"last_time_ns"`
}

// Registry holds per-operation statistics.
type Registry struct {
	mu    sync.Mutex
	stats map[string]*OperationStats
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stats: make(map[string]*OperationStats)}
}

// Record adds one operation outcome.
func (r *Registry) Record(op string, d time.Duration, failed, timedOut bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[op]
	if !ok {
		s = &OperationStats{}
		r.stats[op] = s
	}
	s.Count++
	if failed {
		s.Failures++
	}
	if timedOut {
		s.Timeouts++
	}
	s.TotalTime += d
	s.LastTime = d
}

// Snapshot returns a copy of all statistics.
func (r *Registry) Snapshot() map[string]OperationStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]OperationStats, len(r.stats))
	for k, v := range r.stats {
		out[k] = *v
	}
	return out
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

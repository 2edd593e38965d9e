// Package pgnest provides a high-level library API for throwaway
// PostgreSQL clusters in tests.
//
// This package is the primary integration point for test suites. It
// wraps internal packages into a clean, stable public API.
//
// # Concurrency Safety
//
//   - Start() serialises process-environment changes behind a
//     process-wide lock; concurrent Start() calls from different
//     goroutines are safe but briefly queue on that lock.
//
//   - A Cluster's connection info is immutable and safe to share
//     across goroutines. Close() is idempotent.
//
//   - Clusters with DIFFERENT data directories are fully independent.
//     Two clusters must never share a data directory.
//
// # Recommended Usage Pattern
//
//	func TestMain(m *testing.M) { os.Exit(m.Run()) }
//
//	func TestWithDatabase(t *testing.T) {
//	    c, err := pgnest.Start(context.Background(), pgnest.Options{Version: "16"})
//	    if err != nil {
//	        if pgnest.Skippable(err) {
//	            t.Skip(err)
//	        }
//	        t.Fatal(err)
//	    }
//	    defer c.Close()
//
//	    db, err := sql.Open("postgres", c.DSN())
//	    ...
//	}
package pgnest

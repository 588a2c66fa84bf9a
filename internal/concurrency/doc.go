// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package concurrency implements the work-stealing thread pool backing the
// hioload-mcp transport: per-worker Chase–Lev deques, round-robin
// submission, online resize, and a load-reactive auto-tuner.
//
// All counters are accessed atomically; structural fields (logical worker
// count, shutdown state) sit behind a read-write lock; the long-sleep wake
// path uses its own mutex, separate from the structural lock.
package concurrency

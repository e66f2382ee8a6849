// Package metrics provides lock-free counters for request-admission
// observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. The admission latency histogram
// uses 8 fixed buckets (≤5ms … +Inf). Both are allocation-free on the
// write path.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation. Exporting the
// values (logs, HTTP handlers) is the caller's job.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import authcore or any sibling package.
//   - Expose global metric registries.
package metrics

// Package metrics provides lock-free counters for coordinator
// observability.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The write path is allocation-free.
//
// This package owns metric storage and snapshot creation only. Export
// (Prometheus text exposition) lives in metrics/export/ and reads
// [Snapshot] values. It must not perform I/O or import sibling packages.
package metrics

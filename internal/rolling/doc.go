// Package rolling exposes the rolling queue manager: the public API for
// assigning sessions to associates, advancing queues as sessions complete,
// and reordering or requeuing entries.
//
// The manager composes the queue store and position allocator and serializes
// in-process writers with a per-associate mutex. It assumes low write
// concurrency per associate: one active mutation in flight per associate at a
// time. Cross-process writers are serialized by the store's file lock, and a
// mutation that still loses a race is rejected with queue.ErrStaleRevision
// rather than applied over stale state.
//
// Storage errors propagate unmodified; the manager adds no retry or
// suppression logic.
package rolling

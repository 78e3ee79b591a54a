// Package queue persists per-associate rolling queue entries in SQLite and
// maintains their ordering invariants.
//
// Each associate owns a sequence of entries whose positions form the
// contiguous run 1..N across every status. The Store manages the database
// connection, schema initialization, and atomic batch writes; the Allocator
// owns every position-shifting computation; stats.go aggregates a fetched
// snapshot without touching the database.
//
// Batches are the only atomicity unit. A batch either fully applies or fully
// fails, and every batch checks-and-increments the owning associate's revision
// row in the same transaction, so a writer racing a read-then-write sequence
// surfaces as ErrStaleRevision instead of silently corrupting positions.
// There is no isolation between the read that computed a batch and the write
// that applies it beyond that revision check.
//
// Treat this package as the single source of truth for queue semantics; when
// you add statuses or fields, update schema.sql and bump schemaVersion.
package queue

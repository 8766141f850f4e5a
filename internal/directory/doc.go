// Package directory persists annotation work items in SQLite and provides the
// atomic claim primitive the assignment manager is built on.
//
// Each item is one row in work_items plus one row per track in item_tracks.
// The per-track row carries the completion flag, the lock holder, heartbeat
// timestamps, and (for the expert track) the encoded keyword progress. A
// CHECK constraint keeps a completed track from also being locked.
//
// ClaimNext runs inside an immediate write transaction: it selects the
// lowest-id eligible row and locks it with a conditional UPDATE that only
// succeeds while the row is still unlocked and incomplete. A lost race
// retries with the next candidate and, after the configured number of
// attempts, reports workitem.ErrClaimConflict. Transient SQLITE_BUSY errors
// are retried with exponential backoff.
//
// Schema changes bump schemaVersion in schema.go; existing databases with a
// different version are rejected rather than migrated.
package directory

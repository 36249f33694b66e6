// Package store provides the SQLite-backed sweep journal.
//
// The journal is an append-only audit log of every owner flushed by the
// scheduler:
//   - Sweeps: one row per flushed owner (tick, priority, owner, flag snapshot)
//   - Schemas: the flag schemas a run was configured with, by content hash
//
// The journal never feeds back into flag state. Reopening a database and
// reading it returns exactly what was written, in the order it was written.
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Queries
// include ORDER BY seq ASC, id ASC COLLATE BINARY so results are identical
// across reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Flag snapshots and schema declarations are stored as canonical JSON
// produced by ir.MarshalCanonical.
package store

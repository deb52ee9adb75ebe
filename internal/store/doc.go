// Package store provides SQLite-backed persistence for segments, segment
// groups and recorded segment counts.
//
// # Invariants
//
//   - Segment codes are unique among rows with deleted_at IS NULL
//     (partial unique index). Soft delete renames the code with a random
//     suffix so the slug can be reused.
//   - A locked segment rejects soft deletion and changes to its code,
//     table, template, fields, criteria or version with ErrLocked. Cache
//     bookkeeping and descriptive fields stay writable.
//   - Lookups by code or id only ever return non-deleted rows and report
//     misses with model.ErrNotFound.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as fixed-width UTC text so they sort
// lexicographically.
package store

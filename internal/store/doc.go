// Package store provides SQLite-backed storage for simulation runs and their
// per-timestep summaries.
//
// A run row records how a simulation was configured; every aggregated
// timestep appends one summary row with its digest and the chained run
// digest. Rows are append-only and writes are idempotent, so replaying a
// scenario into the same database is harmless.
//
// # Ordering
//
//   - Summaries are read ORDER BY step ASC.
//   - Runs are read ORDER BY id ASC COLLATE BINARY; run ids are UUIDv7 and
//     therefore sort by creation time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Summary payloads are stored as RFC 8785 canonical JSON (internal/ir), the
// same bytes their digest is computed over.
package store

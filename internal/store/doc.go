// Package store provides SQLite-backed durable storage for batch compile jobs.
//
// A job descriptor bridges the host restart between the two compile phases:
//   - Jobs: id, status, output path, timestamps, fatal error
//   - Job Items: one per compile request, in request order, with the
//     program JSON and program id once phase 2 has run
//
// # Status Transitions
//
//	pending -> compiling -> completed
//	pending -> compiling -> failed
//	pending -> failed
//	pending -> stale
//
// Every transition is a compare-and-set on the current status, so two
// processes resuming the same job cannot both compile it.
//
// # Deterministic Query Results
//   - Job lists are ordered by created_at ASC, id ASC COLLATE BINARY
//   - Items are ordered by seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

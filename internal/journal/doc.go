// Package journal provides a SQLite-backed audit log of catalog mutations.
//
// Every successful upsert appends one row recording what came in:
// the operation id, the source of the batch, which product ids it touched,
// the snapshot taken beforehand and the fingerprint of the resulting
// document. The JSON document stays the source of truth; the journal is an
// append-only side record and never consulted when loading the catalog.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package journal

// Package store persists document cache snapshots.
//
// Two formats are supported:
//   - SQLite: one row per document, replaced as a whole on every save
//   - JSON: a pretty, key-ordered export written atomically
//
// # Determinism
//
// Rows are always read ORDER BY id COLLATE BINARY ASC, which matches the
// cache's key order. Document content is stored as canonical JSON (sorted
// keys, NFC strings, no HTML escaping) so that content_hash is stable
// across saves of the same state.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

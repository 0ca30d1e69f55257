// Package sqlite provides the SQLite-backed metadata store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. It is the
// durable, authoritative store for chunk records; the in-memory cache
// is a derived view over the same rows.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory. Timestamps are persisted as RFC 3339 UTC
// strings so descending timestamp ordering is deterministic.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite

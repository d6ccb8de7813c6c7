// Package sqlite provides the SQLite-backed persistent cache.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements driven.Cache with two
// logical stores sharing one database connection:
//
//   - content: extracted PDF text keyed by document path
//   - embeddings: chunk texts and their embedding vectors keyed by document path
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-rag/cache/cache.db
//
// # Thread Safety
//
// All operations are thread-safe. Writes are last-writer-wins per path.
package sqlite

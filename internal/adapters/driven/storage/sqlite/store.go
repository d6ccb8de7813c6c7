package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// dbFile is the database file name inside the data directory.
const dbFile = "cache.db"

// Store is a SQLite database holding the persistent cache.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-rag/cache/cache.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-rag", "cache")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY between concurrent requests.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection. Later cache calls fail with
// domain.ErrCacheUnavailable.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Cache returns a driven.Cache backed by this store.
func (s *Store) Cache() driven.Cache {
	return &cacheStore{store: s}
}

// conn returns the database handle, or ErrCacheUnavailable once closed.
func (s *Store) conn() (*sql.DB, error) {
	if s.closed.Load() {
		return nil, domain.ErrCacheUnavailable
	}
	return s.db, nil
}

// migrate runs all pending migrations in version order.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// apply executes one migration and records its version atomically.
func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// float64SliceToBytes encodes a vector as little-endian float64 values.
func float64SliceToBytes(floats []float64) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*8)
	for i, f := range floats {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// bytesToFloat64Slice decodes a vector written by float64SliceToBytes.
func bytesToFloat64Slice(data []byte) []float64 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float64, len(data)/8)
	for i := range floats {
		floats[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return floats
}

// Ensure cacheStore implements the interface.
var _ driven.Cache = (*cacheStore)(nil)

// cacheStore implements driven.Cache.
type cacheStore struct {
	store *Store
}

// GetContent retrieves the cached extraction for path.
func (c *cacheStore) GetContent(ctx context.Context, path string) (*domain.ContentCacheEntry, error) {
	db, err := c.store.conn()
	if err != nil {
		return nil, err
	}

	var entry domain.ContentCacheEntry
	err = db.QueryRowContext(ctx,
		"SELECT mtime, content FROM content_cache WHERE path = ?", path,
	).Scan(&entry.MTime, &entry.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content %s: %w", path, err)
	}
	return &entry, nil
}

// PutContent stores or replaces the extraction for path.
func (c *cacheStore) PutContent(ctx context.Context, path string, entry domain.ContentCacheEntry) error {
	db, err := c.store.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO content_cache (path, mtime, content, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			content = excluded.content,
			updated_at = excluded.updated_at
	`, path, entry.MTime, entry.Content)
	if err != nil {
		return fmt.Errorf("put content %s: %w", path, err)
	}
	return nil
}

// GetEmbeddings retrieves the cached chunk embeddings for path.
func (c *cacheStore) GetEmbeddings(ctx context.Context, path string) (*domain.EmbeddingCacheEntry, error) {
	db, err := c.store.conn()
	if err != nil {
		return nil, err
	}

	var entry domain.EmbeddingCacheEntry
	err = db.QueryRowContext(ctx,
		"SELECT mtime, model FROM embedding_entries WHERE path = ?", path,
	).Scan(&entry.MTime, &entry.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get embeddings %s: %w", path, err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT content, embedding FROM embedding_chunks
		WHERE path = ? ORDER BY position
	`, path)
	if err != nil {
		return nil, fmt.Errorf("get embedding chunks %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chunk domain.EmbeddedChunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.Content, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding chunk: %w", err)
		}
		chunk.Embedding = bytesToFloat64Slice(blob)
		entry.Chunks = append(entry.Chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedding chunks: %w", err)
	}

	return &entry, nil
}

// PutEmbeddings replaces the chunk embeddings for path in one transaction.
func (c *cacheStore) PutEmbeddings(ctx context.Context, path string, entry domain.EmbeddingCacheEntry) error {
	db, err := c.store.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO embedding_entries (path, mtime, model, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			model = excluded.model,
			updated_at = excluded.updated_at
	`, path, entry.MTime, entry.Model)
	if err != nil {
		return fmt.Errorf("put embedding entry %s: %w", path, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM embedding_chunks WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete old embedding chunks %s: %w", path, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embedding_chunks (path, position, content, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range entry.Chunks {
		if _, err := stmt.ExecContext(ctx, path, i, chunk.Content, float64SliceToBytes(chunk.Embedding)); err != nil {
			return fmt.Errorf("insert embedding chunk %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Clear removes every entry of one logical store.
func (c *cacheStore) Clear(ctx context.Context, store domain.CacheStore) error {
	db, err := c.store.conn()
	if err != nil {
		return err
	}

	var stmt string
	switch store {
	case domain.CacheStoreContent:
		stmt = "DELETE FROM content_cache"
	case domain.CacheStoreEmbeddings:
		stmt = "DELETE FROM embedding_chunks; DELETE FROM embedding_entries"
	default:
		return fmt.Errorf("%w: unknown cache store %q", domain.ErrInvalidInput, store)
	}

	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("clear %s: %w", store, err)
	}
	return nil
}

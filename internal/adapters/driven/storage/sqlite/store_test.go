package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

// ==================== Store Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "cache.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "path", "to", "db")

	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_Migrations(t *testing.T) {
	store := setupTestStore(t)

	var version int
	err := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	for _, table := range []string{"content_cache", "embedding_entries", "embedding_chunks"} {
		var tableExists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&tableExists)
		require.NoError(t, err)
		assert.Equal(t, 1, tableExists, "table %s should exist", table)
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Cache().PutContent(ctx, "a.pdf", domain.ContentCacheEntry{MTime: 5, Content: "text"}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	entry, err := reopened.Cache().GetContent(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "text", entry.Content)

	var migrations int
	require.NoError(t, reopened.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&migrations))
	assert.Equal(t, 2, migrations, "migrations must not be applied twice")
}

func TestStore_Close(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "second close is a no-op")
	assert.Error(t, store.db.Ping())
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	cache := store.Cache()
	require.NoError(t, store.Close())

	ctx := context.Background()

	_, err = cache.GetContent(ctx, "a.pdf")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = cache.PutContent(ctx, "a.pdf", domain.ContentCacheEntry{})
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	_, err = cache.GetEmbeddings(ctx, "a.md")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = cache.PutEmbeddings(ctx, "a.md", domain.EmbeddingCacheEntry{})
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = cache.Clear(ctx, domain.CacheStoreContent)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

// ==================== Content Cache Tests ====================

func TestContentCache_PutAndGet(t *testing.T) {
	cache := setupTestStore(t).Cache()
	ctx := context.Background()

	entry := domain.ContentCacheEntry{MTime: 1700000000123, Content: "extracted pdf text"}
	require.NoError(t, cache.PutContent(ctx, "docs/paper.pdf", entry))

	got, err := cache.GetContent(ctx, "docs/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, entry, *got)
	assert.True(t, got.IsFresh(1700000000123))
	assert.False(t, got.IsFresh(1700000000124))
}

func TestContentCache_Overwrite(t *testing.T) {
	cache := setupTestStore(t).Cache()
	ctx := context.Background()

	require.NoError(t, cache.PutContent(ctx, "a.pdf", domain.ContentCacheEntry{MTime: 1, Content: "old"}))
	require.NoError(t, cache.PutContent(ctx, "a.pdf", domain.ContentCacheEntry{MTime: 2, Content: "new"}))

	got, err := cache.GetContent(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MTime)
	assert.Equal(t, "new", got.Content)
}

func TestContentCache_NotFound(t *testing.T) {
	cache := setupTestStore(t).Cache()

	got, err := cache.GetContent(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, got)
}

// ==================== Embedding Cache Tests ====================

func TestEmbeddingCache_PutAndGet(t *testing.T) {
	cache := setupTestStore(t).Cache()
	ctx := context.Background()

	entry := domain.EmbeddingCacheEntry{
		MTime: 42,
		Model: "nomic-embed-text",
		Chunks: []domain.EmbeddedChunk{
			{Content: "first", Embedding: []float64{0.1, -0.2, 0.3}},
			{Content: "second", Embedding: []float64{1e-9, 12345.678}},
		},
	}
	require.NoError(t, cache.PutEmbeddings(ctx, "notes/a.md", entry))

	got, err := cache.GetEmbeddings(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, entry, *got)
	assert.True(t, got.IsFreshFor(42, "nomic-embed-text"))
	assert.False(t, got.IsFreshFor(42, "mxbai-embed-large"))
}

func TestEmbeddingCache_ModelReplaced(t *testing.T) {
	cache := setupTestStore(t).Cache()
	ctx := context.Background()

	chunks := []domain.EmbeddedChunk{{Content: "c", Embedding: []float64{1}}}
	require.NoError(t, cache.PutEmbeddings(ctx, "a.md", domain.EmbeddingCacheEntry{MTime: 1, Model: "old", Chunks: chunks}))
	require.NoError(t, cache.PutEmbeddings(ctx, "a.md", domain.EmbeddingCacheEntry{MTime: 1, Model: "new", Chunks: chunks}))

	got, err := cache.GetEmbeddings(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Model)
}

func TestEmbeddingCache_RowWithoutModelIsStale(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Rows written before the model column existed.
	_, err := store.db.Exec("INSERT INTO embedding_entries (path, mtime) VALUES (?, ?)", "old.md", 9)
	require.NoError(t, err)

	got, err := store.Cache().GetEmbeddings(ctx, "old.md")
	require.NoError(t, err)
	assert.Empty(t, got.Model)
	assert.True(t, got.IsFresh(9))
	assert.False(t, got.IsFreshFor(9, "nomic-embed-text"))
}

func TestEmbeddingCache_ReplaceShrinks(t *testing.T) {
	cache := setupTestStore(t).Cache()
	ctx := context.Background()

	require.NoError(t, cache.PutEmbeddings(ctx, "a.md", domain.EmbeddingCacheEntry{
		MTime: 1,
		Chunks: []domain.EmbeddedChunk{
			{Content: "one", Embedding: []float64{1}},
			{Content: "two", Embedding: []float64{2}},
			{Content: "three", Embedding: []float64{3}},
		},
	}))
	require.NoError(t, cache.PutEmbeddings(ctx, "a.md", domain.EmbeddingCacheEntry{
		MTime:  2,
		Chunks: []domain.EmbeddedChunk{{Content: "only", Embedding: []float64{9}}},
	}))

	got, err := cache.GetEmbeddings(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MTime)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, "only", got.Chunks[0].Content)
}

func TestEmbeddingCache_EmptyEntry(t *testing.T) {
	cache := setupTestStore(t).Cache()
	ctx := context.Background()

	require.NoError(t, cache.PutEmbeddings(ctx, "empty.md", domain.EmbeddingCacheEntry{MTime: 7}))

	got, err := cache.GetEmbeddings(ctx, "empty.md")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.MTime)
	assert.Empty(t, got.Chunks)
}

func TestEmbeddingCache_NotFound(t *testing.T) {
	cache := setupTestStore(t).Cache()

	_, err := cache.GetEmbeddings(context.Background(), "missing.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmbeddingCache_ConcurrentWrites(t *testing.T) {
	cache := setupTestStore(t).Cache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := domain.EmbeddingCacheEntry{
				MTime:  int64(i),
				Chunks: []domain.EmbeddedChunk{{Content: fmt.Sprintf("c%d", i), Embedding: []float64{float64(i)}}},
			}
			assert.NoError(t, cache.PutEmbeddings(ctx, fmt.Sprintf("doc%d.md", i), entry))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		got, err := cache.GetEmbeddings(ctx, fmt.Sprintf("doc%d.md", i))
		require.NoError(t, err)
		assert.Equal(t, int64(i), got.MTime)
	}
}

// ==================== Clear Tests ====================

func TestCache_Clear(t *testing.T) {
	cache := setupTestStore(t).Cache()
	ctx := context.Background()

	require.NoError(t, cache.PutContent(ctx, "a.pdf", domain.ContentCacheEntry{MTime: 1, Content: "x"}))
	require.NoError(t, cache.PutEmbeddings(ctx, "b.md", domain.EmbeddingCacheEntry{
		MTime:  1,
		Chunks: []domain.EmbeddedChunk{{Content: "y", Embedding: []float64{1}}},
	}))

	require.NoError(t, cache.Clear(ctx, domain.CacheStoreEmbeddings))

	_, err := cache.GetEmbeddings(ctx, "b.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = cache.GetContent(ctx, "a.pdf")
	assert.NoError(t, err, "content store must survive clearing embeddings")

	require.NoError(t, cache.Clear(ctx, domain.CacheStoreContent))
	_, err = cache.GetContent(ctx, "a.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCache_Clear_UnknownStore(t *testing.T) {
	cache := setupTestStore(t).Cache()

	err := cache.Clear(context.Background(), domain.CacheStore("bogus"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ==================== Helper Tests ====================

func TestFloat64Conversion(t *testing.T) {
	vec := []float64{0, 1.5, -2.25, 3.141592653589793}
	assert.Equal(t, vec, bytesToFloat64Slice(float64SliceToBytes(vec)))
	assert.Len(t, float64SliceToBytes(vec), 32)
	assert.Nil(t, float64SliceToBytes(nil))
	assert.Nil(t, bytesToFloat64Slice(nil))
}

func TestDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewStore("")
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(home, ".sercha-rag", "cache", "cache.db"), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

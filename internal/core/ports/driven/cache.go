package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Cache is the persistent key-value cache keyed by document path.
// Entries are derived data: callers validate them with IsFresh and
// recompute on mismatch. Writes are last-writer-wins.
//
// Implementations return domain.ErrNotFound for absent keys and
// domain.ErrCacheUnavailable when the backing store is not usable.
type Cache interface {
	// GetContent returns the cached extraction for path.
	GetContent(ctx context.Context, path string) (*domain.ContentCacheEntry, error)

	// PutContent stores or replaces the extraction for path.
	PutContent(ctx context.Context, path string, entry domain.ContentCacheEntry) error

	// GetEmbeddings returns the cached chunk embeddings for path.
	GetEmbeddings(ctx context.Context, path string) (*domain.EmbeddingCacheEntry, error)

	// PutEmbeddings stores or replaces the chunk embeddings for path.
	PutEmbeddings(ctx context.Context, path string, entry domain.EmbeddingCacheEntry) error

	// Clear removes every entry of one logical store.
	Clear(ctx context.Context, store domain.CacheStore) error
}

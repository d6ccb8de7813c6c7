// Package memory provides in-memory implementations of the driven ports:
// a cache for tests and one-shot runs, the process-wide model info store,
// and a cosine similarity vector index.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.Cache = (*Cache)(nil)

// Cache is an in-memory implementation of driven.Cache.
// Entries are copied on the way in and out so callers cannot alias them.
type Cache struct {
	mu         sync.RWMutex
	content    map[string]domain.ContentCacheEntry
	embeddings map[string]domain.EmbeddingCacheEntry
}

// NewCache creates a new in-memory cache.
func NewCache() *Cache {
	return &Cache{
		content:    make(map[string]domain.ContentCacheEntry),
		embeddings: make(map[string]domain.EmbeddingCacheEntry),
	}
}

// GetContent retrieves the cached extraction for path.
func (c *Cache) GetContent(_ context.Context, path string) (*domain.ContentCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.content[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// PutContent stores or replaces the extraction for path.
func (c *Cache) PutContent(_ context.Context, path string, entry domain.ContentCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content[path] = entry
	return nil
}

// GetEmbeddings retrieves the cached chunk embeddings for path.
func (c *Cache) GetEmbeddings(_ context.Context, path string) (*domain.EmbeddingCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.embeddings[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := cloneEmbeddings(entry)
	return &clone, nil
}

// PutEmbeddings stores or replaces the chunk embeddings for path.
func (c *Cache) PutEmbeddings(_ context.Context, path string, entry domain.EmbeddingCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddings[path] = cloneEmbeddings(entry)
	return nil
}

// Clear removes every entry of one logical store.
func (c *Cache) Clear(_ context.Context, store domain.CacheStore) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch store {
	case domain.CacheStoreContent:
		c.content = make(map[string]domain.ContentCacheEntry)
	case domain.CacheStoreEmbeddings:
		c.embeddings = make(map[string]domain.EmbeddingCacheEntry)
	default:
		return fmt.Errorf("%w: unknown cache store %q", domain.ErrInvalidInput, store)
	}
	return nil
}

func cloneEmbeddings(entry domain.EmbeddingCacheEntry) domain.EmbeddingCacheEntry {
	out := domain.EmbeddingCacheEntry{MTime: entry.MTime, Model: entry.Model}
	if entry.Chunks == nil {
		return out
	}
	out.Chunks = make([]domain.EmbeddedChunk, len(entry.Chunks))
	for i, chunk := range entry.Chunks {
		out.Chunks[i] = domain.EmbeddedChunk{
			Content:   chunk.Content,
			Embedding: append([]float64(nil), chunk.Embedding...),
		}
	}
	return out
}

package domain

// CacheStore names a logical store of the persistent cache.
type CacheStore string

// Available cache stores.
const (
	// CacheStoreContent holds extracted document text (PDF).
	CacheStoreContent CacheStore = "content"

	// CacheStoreEmbeddings holds chunk embeddings per document.
	CacheStoreEmbeddings CacheStore = "embeddings"
)

// IsValid returns true if the store name is recognised.
func (s CacheStore) IsValid() bool {
	return s == CacheStoreContent || s == CacheStoreEmbeddings
}

// ContentCacheEntry memoises an expensive text extraction.
// It is valid only while MTime equals the file's current modification time.
type ContentCacheEntry struct {
	MTime   int64
	Content string
}

// IsFresh reports whether the entry still matches the file's mtime.
func (e ContentCacheEntry) IsFresh(mtime int64) bool {
	return e.MTime == mtime
}

// EmbeddedChunk pairs chunk text with its embedding vector.
type EmbeddedChunk struct {
	Content   string
	Embedding []float64
}

// EmbeddingCacheEntry memoises the chunk embeddings of one document.
// It is valid only while MTime equals the file's current modification time
// and Model names the embedding model currently in use.
type EmbeddingCacheEntry struct {
	MTime  int64
	Model  string
	Chunks []EmbeddedChunk
}

// IsFresh reports whether the entry still matches the file's mtime.
func (e EmbeddingCacheEntry) IsFresh(mtime int64) bool {
	return e.MTime == mtime
}

// IsFreshFor reports whether the entry matches the file's mtime and was
// produced by model. Vectors from different models are not comparable.
func (e EmbeddingCacheEntry) IsFreshFor(mtime int64, model string) bool {
	return e.IsFresh(mtime) && e.Model == model
}

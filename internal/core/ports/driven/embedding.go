package driven

import "context"

// ProgressFunc receives the number of processed items and the total.
type ProgressFunc func(processed, total int)

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, retrieval is disabled.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI-compatible servers (text-embedding-3-small)
type EmbeddingService interface {
	// Embed generates embeddings for texts in one logical batch.
	// The provider may split the batch internally and reports progress
	// through onProgress (which may be nil). On cancellation it returns
	// the embeddings computed so far together with ctx.Err().
	Embed(ctx context.Context, texts []string, onProgress ProgressFunc) ([][]float64, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

package domain

import "errors"

// Domain errors represent pipeline failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file extension the pipeline cannot read.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrCacheUnavailable indicates the persistent cache is not initialised or closed.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Retrieval is skipped without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrInvalidResponse indicates a provider returned a missing or malformed payload.
	ErrInvalidResponse = errors.New("invalid provider response")

	// ErrTransportFailed indicates both the streaming and buffered transports failed.
	ErrTransportFailed = errors.New("transport failed")
)

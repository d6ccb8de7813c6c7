// Package domain defines the core entities for the Sercha RAG pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A note or file discovered while walking the link graph
//   - Chunk: A bounded slice of a document's normalised text
//   - ContentCacheEntry / EmbeddingCacheEntry: mtime-guarded cache values
//   - ModelInfo: Context-window bookkeeping for a language model
//   - RetrievalResult: A scored chunk ready for formatting
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

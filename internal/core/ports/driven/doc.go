// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - FileStore: Reads note text, binary files and timestamps
//   - LinkIndex: Resolves wiki links and reports backlinks
//   - LLMService: Streams generated answers
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the pipeline degrades gracefully:
//
//   - Cache: Persistent content/embedding cache. Without it everything is recomputed.
//   - TextExtractor: PDF text extraction. Without it PDF documents are skipped.
//   - EmbeddingService: Without it retrieval is skipped and no context is attached.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven

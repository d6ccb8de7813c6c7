// Package chunker provides a structure-aware text chunking processor.
//
// Text is first normalised with Preprocess and then split along section
// separators, headers, paragraphs and lists by Split.
package chunker

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultMaxSize is the default maximum number of characters per chunk.
const DefaultMaxSize = domain.DefaultMaxChunkSize

// Processor splits document content into structure-aware chunks.
// It implements the PostProcessor interface.
type Processor struct {
	maxSize int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxSize sets the maximum chunk size in characters.
func WithMaxSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.maxSize = size
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxSize: DefaultMaxSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// MaxSize returns the configured maximum chunk size.
func (p *Processor) MaxSize() int {
	return p.maxSize
}

// Process preprocesses and splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		return nil, nil
	}

	texts := Split(Preprocess(doc.Content), p.maxSize)
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:           uuid.New().String(),
			DocumentPath: doc.Path,
			Content:      text,
			Position:     i,
		})
	}

	return chunks, nil
}

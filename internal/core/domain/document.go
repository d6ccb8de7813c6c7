package domain

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileStat holds the timestamps the pipeline cares about for a file.
type FileStat struct {
	// ModTime is the last modification time. It drives cache staleness.
	ModTime time.Time

	// CreateTime is the creation (or closest available) time of the file.
	CreateTime time.Time
}

// DocumentMeta describes where a document sits in the traversed link graph.
type DocumentMeta struct {
	// Basename is the file name without directory or extension.
	Basename string

	// Stat holds the source file timestamps.
	Stat FileStat

	// Depth is the number of forward-link hops from the root document.
	Depth int

	// IsBacklink is true when the document was reached through a backlink.
	IsBacklink bool
}

// Document is a note or file collected for one RAG request.
// It is never mutated after insertion into a collection result.
type Document struct {
	// Path is the vault-relative path and the unique identifier.
	Path string

	// Content is the extracted text (markdown as-is, PDF as plain text).
	Content string

	// Meta holds graph and filesystem metadata.
	Meta DocumentMeta
}

// Extension returns the lower-cased extension of the document path without the dot.
func (d Document) Extension() string {
	return Extension(d.Path)
}

// Extension returns the lower-cased extension of path without the leading dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Basename returns the file name of path without directory or extension.
func Basename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Chunk represents a retrievable unit within a document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentPath links to the parent Document.
	DocumentPath string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation, empty until embedded.
	Embedding []float64
}

// RetrievalResult is a chunk scored against a query.
type RetrievalResult struct {
	// Document is the source document of the chunk.
	Document Document

	// Content is the chunk text.
	Content string

	// Score is the similarity score, higher is more relevant.
	Score float64
}

// Collection is the result of walking the link graph from a root document.
type Collection struct {
	// Root is the active document the walk started from.
	Root Document

	// Linked holds every other reachable document keyed by path.
	// The root is never part of it.
	Linked map[string]Document
}

// Documents returns the root followed by the linked documents in path order.
func (c *Collection) Documents() []Document {
	docs := make([]Document, 0, len(c.Linked)+1)
	docs = append(docs, c.Root)

	paths := make([]string, 0, len(c.Linked))
	for path := range c.Linked {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		docs = append(docs, c.Linked[path])
	}
	return docs
}

// ChunkedDocument pairs a document with its chunk texts, in document order.
type ChunkedDocument struct {
	Document Document
	Chunks   []string
}

package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// FileStore is the read-only view of the host document store.
type FileStore interface {
	// ReadText returns the (possibly cached) text content of a file.
	ReadText(ctx context.Context, path string) (string, error)

	// ReadBinary returns the raw bytes of a file.
	ReadBinary(ctx context.Context, path string) ([]byte, error)

	// Stat returns the file timestamps.
	// Returns domain.ErrNotFound if the file does not exist.
	Stat(ctx context.Context, path string) (domain.FileStat, error)
}

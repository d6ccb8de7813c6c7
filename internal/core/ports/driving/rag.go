package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AskRequest is one question asked against the note graph of a root document.
type AskRequest struct {
	// RootPath is the active document whose link graph supplies context.
	RootPath string

	// Prompt is the user's question or selected text.
	Prompt string

	// Action overrides the system prompt. Empty uses the configured default.
	Action string

	// Images are base64-encoded images forwarded to multimodal models.
	Images []string
}

// Progress receives retrieval progress. Either field may be nil.
type Progress struct {
	// OnTotal is called once, the first time the total step count is known.
	OnTotal func(total int)

	// OnStep is called with the monotonically increasing completed step count.
	OnStep func(completed int)
}

// RAGService answers questions using documents linked to a root document.
type RAGService interface {
	// Ask collects, chunks and retrieves context for the request and streams
	// the answer through onUpdate. A cancelled context returns ctx.Err().
	Ask(ctx context.Context, req AskRequest, progress *Progress, onUpdate func(string)) (string, error)

	// Context returns the formatted retrieval context for query without
	// calling the language model.
	Context(ctx context.Context, rootPath, query string, progress *Progress) (string, error)

	// Collect returns the documents reachable from rootPath.
	Collect(ctx context.Context, rootPath string) (*domain.Collection, error)
}

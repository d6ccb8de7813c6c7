package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// UpdateFunc receives the cumulative answer text while it streams.
type UpdateFunc func(partial string)

// LLMService generates answers from a prompt plus retrieved context.
//
// Implementations may include:
//   - Ollama (local models, adaptive context window)
//   - OpenAI-compatible servers (LM Studio, vLLM, OpenAI)
type LLMService interface {
	// Process generates an answer, invoking onUpdate (which may be nil)
	// with the cumulative text as it arrives. On cancellation it returns
	// ctx.Err() and issues no further updates.
	Process(ctx context.Context, req domain.ProcessRequest, onUpdate UpdateFunc) (string, error)

	// ListModels returns the model names available on the provider.
	ListModels(ctx context.Context) ([]string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

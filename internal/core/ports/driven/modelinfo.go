package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// ModelInfoStore caches per-model context window information for the
// lifetime of the process. It is shared by concurrent requests.
type ModelInfoStore interface {
	// Get returns the cached info for model.
	Get(model string) (domain.ModelInfo, bool)

	// Set stores info for model, replacing any previous value.
	Set(model string, info domain.ModelInfo)
}

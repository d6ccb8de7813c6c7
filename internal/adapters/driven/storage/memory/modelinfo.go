package memory

import (
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure ModelInfoStore implements the interface.
var _ driven.ModelInfoStore = (*ModelInfoStore)(nil)

// ModelInfoStore keeps model context information for the process lifetime.
// There is no expiry; concurrent writers overwrite each other.
type ModelInfoStore struct {
	mu    sync.RWMutex
	infos map[string]domain.ModelInfo
}

// NewModelInfoStore creates an empty store.
func NewModelInfoStore() *ModelInfoStore {
	return &ModelInfoStore{
		infos: make(map[string]domain.ModelInfo),
	}
}

// Get returns the cached info for model.
func (s *ModelInfoStore) Get(model string) (domain.ModelInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.infos[model]
	return info, ok
}

// Set stores info for model.
func (s *ModelInfoStore) Set(model string, info domain.ModelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos[model] = info
}

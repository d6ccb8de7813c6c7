package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is a brute-force cosine similarity index.
// It is built per request, so a linear scan is enough.
type VectorIndex struct {
	mu      sync.RWMutex
	ids     []string
	vectors map[string][]float64
	dim     int
}

// NewVectorIndex creates an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		vectors: make(map[string][]float64),
	}
}

// Add inserts or replaces the vector for chunkID. All vectors must share
// the dimension of the first one added.
func (v *VectorIndex) Add(_ context.Context, chunkID string, embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for %s", domain.ErrInvalidInput, chunkID)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dim == 0 {
		v.dim = len(embedding)
	} else if len(embedding) != v.dim {
		return fmt.Errorf("%w: embedding dimension %d, index has %d", domain.ErrInvalidInput, len(embedding), v.dim)
	}

	if _, exists := v.vectors[chunkID]; !exists {
		v.ids = append(v.ids, chunkID)
	}
	v.vectors[chunkID] = append([]float64(nil), embedding...)
	return nil
}

// Search returns up to k hits ordered by descending similarity.
// Ties keep insertion order.
func (v *VectorIndex) Search(ctx context.Context, query []float64, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.ids) == 0 {
		return nil, nil
	}
	if len(query) != v.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index has %d", domain.ErrInvalidInput, len(query), v.dim)
	}

	queryNorm := norm(query)
	hits := make([]driven.VectorHit, 0, len(v.ids))
	for _, id := range v.ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Similarity: cosine(query, queryNorm, v.vectors[id]),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.ids)
}

// Close drops all vectors.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ids = nil
	v.vectors = make(map[string][]float64)
	v.dim = 0
	return nil
}

func norm(vec []float64) float64 {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(query []float64, queryNorm float64, vec []float64) float64 {
	vecNorm := norm(vec)
	if queryNorm == 0 || vecNorm == 0 {
		return 0
	}
	var dot float64
	for i := range query {
		dot += query[i] * vec[i]
	}
	return dot / (queryNorm * vecNorm)
}

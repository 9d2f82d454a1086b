// Package flat provides an exact, in-memory cosine similarity index.
// It implements the driven.VectorIndex interface.
//
// Every search scans all vectors, which keeps results exact and
// deterministic: equal scores are ordered by insertion position.
package flat

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores vectors of a fixed dimension and searches them by cosine similarity.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	norms     []float64
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("flat: dimension must be positive")
	}
	return &Index{dimension: dimension}, nil
}

// Factory adapts New to the index constructor signature used by services.
func Factory(dimension int) (driven.VectorIndex, error) {
	return New(dimension)
}

// Add appends a copy of the vector and returns its position.
func (idx *Index) Add(embedding []float32) (int, error) {
	if len(embedding) != idx.dimension {
		return 0, fmt.Errorf("%w: flat: embedding has %d dimensions, index has %d",
			domain.ErrInvalidArgument, len(embedding), idx.dimension)
	}

	v := slices.Clone(embedding)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.vectors = append(idx.vectors, v)
	idx.norms = append(idx.norms, norm(v))
	return len(idx.vectors) - 1, nil
}

// Search returns the k most similar vectors, best first.
func (idx *Index) Search(query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: flat: query has %d dimensions, index has %d",
			domain.ErrInvalidArgument, len(query), idx.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	qn := norm(query)

	idx.mu.RLock()
	hits := make([]driven.VectorHit, len(idx.vectors))
	for i, v := range idx.vectors {
		hits[i] = driven.VectorHit{Position: i, Similarity: cosine(query, qn, v, idx.norms[i])}
	}
	idx.mu.RUnlock()

	// Stable sort keeps ascending position among equal scores.
	slices.SortStableFunc(hits, func(a, b driven.VectorHit) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Dimensions returns the fixed vector size.
func (idx *Index) Dimensions() int {
	return idx.dimension
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}

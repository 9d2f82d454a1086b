package flat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestNew(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Dimensions())
	assert.Equal(t, 0, idx.Len())

	_, err = New(0)
	assert.Error(t, err)
}

func TestIndex_Add_DimensionMismatch(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)

	_, err = idx.Add([]float32{1, 2})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, 0, idx.Len())
}

func TestIndex_Add_CopiesVector(t *testing.T) {
	idx, _ := New(2)
	v := []float32{1, 0}
	pos, err := idx.Add(v)
	require.NoError(t, err)
	v[0] = 99

	assert.Equal(t, 0, pos)
	assert.Equal(t, []float32{1, 0}, idx.vectors[0])
}

func TestIndex_Search_OrdersBySimilarity(t *testing.T) {
	idx, _ := New(2)
	_, _ = idx.Add([]float32{0, 1})   // 0: orthogonal
	_, _ = idx.Add([]float32{1, 0})   // 1: identical direction
	_, _ = idx.Add([]float32{1, 1})   // 2: 45 degrees
	_, _ = idx.Add([]float32{-1, 0})  // 3: opposite

	hits, err := idx.Search([]float32{2, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, 1, hits[0].Position)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.Equal(t, 2, hits[1].Position)
	assert.Equal(t, 0, hits[2].Position)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
	}
}

func TestIndex_Search_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := New(2)
	for i := 0; i < 5; i++ {
		_, _ = idx.Add([]float32{1, 1})
	}

	hits, err := idx.Search([]float32{1, 1}, 5)
	require.NoError(t, err)
	for i, h := range hits {
		assert.Equal(t, i, h.Position)
	}
}

func TestIndex_Search_KLargerThanIndex(t *testing.T) {
	idx, _ := New(2)
	_, _ = idx.Add([]float32{1, 0})

	hits, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndex_Search_ZeroVectors(t *testing.T) {
	idx, _ := New(2)
	_, _ = idx.Add([]float32{0, 0})

	hits, err := idx.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Zero(t, hits[0].Similarity)
}

func TestIndex_Search_InvalidInput(t *testing.T) {
	idx, _ := New(2)

	_, err := idx.Search([]float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	hits, err := idx.Search([]float32{1, 0}, 0)
	assert.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_ConcurrentSearch(t *testing.T) {
	idx, _ := New(2)
	for i := 0; i < 100; i++ {
		_, _ = idx.Add([]float32{float32(i), 1})
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := idx.Search([]float32{1, 0}, 3)
			assert.NoError(t, err)
			assert.Len(t, hits, 3)
		}()
	}
	wg.Wait()
}

func TestFactory(t *testing.T) {
	vi, err := Factory(4)
	require.NoError(t, err)
	assert.Equal(t, 4, vi.Dimensions())
}

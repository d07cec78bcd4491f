package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	l, err := NewLocalProvider(nil)
	require.NoError(t, err)

	a, err := l.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "def parse(): pass"})
	require.NoError(t, err)
	b, err := l.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "def parse(): pass"})
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector, "same text must embed identically")
	assert.Equal(t, LocalDimension, a.Dimension)
	assert.Len(t, a.Vector, LocalDimension)

	c, err := l.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "def other(): pass"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Vector, c.Vector, "different text must embed differently")
}

func TestLocalProviderUnitLength(t *testing.T) {
	l, err := NewLocalProvider(nil)
	require.NoError(t, err)

	emb, err := l.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)

	var sum float64
	for _, v := range emb.Vector {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestLocalProviderBatch(t *testing.T) {
	l, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)

	resp, err := l.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"one", "two", "three"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.Equal(t, ProviderLocal, resp.Provider)
}

func TestValidateRequests(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))

	assert.Error(t, ValidateBatchRequest(BatchEmbeddingRequest{}))
	assert.Error(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}))
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
}

func TestCacheReturnsDeepCopy(t *testing.T) {
	c := NewCache(10)
	c.Set("h", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Hash: "h"})

	got, ok := c.Get("h")
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := c.Get("h")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0], "caller mutations must not pollute the cache")
}

func TestComputeHashStable(t *testing.T) {
	assert.Equal(t, ComputeHash("abc"), ComputeHash("abc"))
	assert.NotEqual(t, ComputeHash("abc"), ComputeHash("abd"))
	assert.Len(t, ComputeHash("abc"), 64)
}

func TestNormalizeVectorZero(t *testing.T) {
	zero := []float32{0, 0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

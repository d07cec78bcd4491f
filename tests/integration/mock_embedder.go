package integration

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"regexp"
	"strings"

	"github.com/arothstein/symdex/internal/embedder"
)

var mockTokenSplit = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// MockEmbedder produces deterministic bag-of-words vectors: each token
// hashes to one dimension bucket. Texts sharing tokens end up closer in
// L2 distance than unrelated texts, which is enough signal to test
// hybrid ranking end to end without a real model.
type MockEmbedder struct {
	dimension int
}

// NewMockEmbedder creates a mock embedder with the given dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if req.Text == "" {
		return nil, embedder.ErrEmptyText
	}

	vector := make([]float32, m.dimension)
	for _, token := range mockTokenSplit.Split(strings.ToLower(req.Text), -1) {
		if token == "" {
			continue
		}
		h := sha256.Sum256([]byte(token))
		bucket := binary.BigEndian.Uint32(h[:4]) % uint32(m.dimension)
		vector[bucket]++
	}

	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := float32(1.0 / math.Sqrt(sum))
		for i := range vector {
			vector[i] *= norm
		}
	}

	return &embedder.Embedding{
		Vector:    vector,
		Dimension: m.dimension,
		Provider:  m.Provider(),
		Model:     m.Model(),
		Hash:      embedder.ComputeHash(req.Text),
	}, nil
}

func (m *MockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	if err := embedder.ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}

	return &embedder.BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   m.Provider(),
		Model:      m.Model(),
	}, nil
}

func (m *MockEmbedder) Dimension() int {
	return m.dimension
}

func (m *MockEmbedder) Provider() string {
	return "mock"
}

func (m *MockEmbedder) Model() string {
	return "mock-v1"
}

func (m *MockEmbedder) Close() error {
	return nil
}

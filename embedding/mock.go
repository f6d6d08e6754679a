package embedding

import (
	"context"
	"sync/atomic"
)

// MockEmbeddingModel is a mock implementation of the EmbeddingModel interface.
// Fn, when set, computes the embedding from the text; otherwise Embedding is
// returned for every call.
type MockEmbeddingModel struct {
	Embedding []float64
	Fn        func(text string) []float64
	Err       error

	calls atomic.Int32
}

func (m *MockEmbeddingModel) GetTextEmbedding(ctx context.Context, text string) ([]float64, error) {
	return m.embed(text)
}

func (m *MockEmbeddingModel) GetQueryEmbedding(ctx context.Context, query string) ([]float64, error) {
	return m.embed(query)
}

func (m *MockEmbeddingModel) embed(text string) ([]float64, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Fn != nil {
		return m.Fn(text), nil
	}
	return m.Embedding, nil
}

// Calls returns the number of embedding calls received.
func (m *MockEmbeddingModel) Calls() int {
	return int(m.calls.Load())
}

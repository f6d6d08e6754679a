package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleVectorStore(t *testing.T) {
	ctx := context.Background()
	s := NewSimpleVectorStore()

	_, err := s.Add(ctx, []Record{
		{ID: "a", Text: "go", Metadata: map[string]string{"kind": "dev"}, Embedding: []float64{1, 0}},
		{ID: "b", Text: "design", Metadata: map[string]string{"kind": "design"}, Embedding: []float64{0, 1}},
		{ID: "c", Text: "go and design", Metadata: map[string]string{"kind": "dev"}, Embedding: []float64{1, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())

	res, err := s.Query(ctx, Query{Embedding: []float64{1, 0.1}, TopK: 2})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].ID)
	assert.Equal(t, "c", res[1].ID)

	res, err = s.Query(ctx, Query{Embedding: []float64{0, 1}, TopK: 5, Filters: map[string]string{"kind": "dev"}})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "c", res[0].ID)

	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, 2, s.Count())

	_, err = s.Add(ctx, []Record{{ID: "d"}})
	assert.ErrorIs(t, err, ErrMissingEmbedding)
	_, err = s.Add(ctx, []Record{{Embedding: []float64{1}}})
	assert.Error(t, err)
}

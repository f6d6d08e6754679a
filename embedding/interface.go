package embedding

import "context"

// EmbeddingModel is the interface for generating text embeddings.
type EmbeddingModel interface {
	// GetTextEmbedding generates an embedding for a document text.
	GetTextEmbedding(ctx context.Context, text string) ([]float64, error)
	// GetQueryEmbedding generates an embedding for a search query.
	// This is often the same as GetTextEmbedding, but some models treat them differently.
	GetQueryEmbedding(ctx context.Context, query string) ([]float64, error)
}

// EmbeddingModelWithInfo extends EmbeddingModel with metadata capabilities.
type EmbeddingModelWithInfo interface {
	EmbeddingModel
	// Info returns information about the model's capabilities.
	Info() EmbeddingInfo
}

// EmbeddingModelWithBatch extends EmbeddingModel with batch processing capabilities.
type EmbeddingModelWithBatch interface {
	EmbeddingModel
	// GetTextEmbeddingsBatch generates embeddings for multiple texts.
	// The callback is optional and can be used to track progress.
	GetTextEmbeddingsBatch(ctx context.Context, texts []string, callback ProgressCallback) ([][]float64, error)
}

// EmbedAll embeds texts with the batch API when the model has one, otherwise
// one text at a time.
func EmbedAll(ctx context.Context, model EmbeddingModel, texts []string, callback ProgressCallback) ([][]float64, error) {
	if batch, ok := model.(EmbeddingModelWithBatch); ok {
		return batch.GetTextEmbeddingsBatch(ctx, texts, callback)
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		emb, err := model.GetTextEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
		if callback != nil {
			callback(i+1, len(texts))
		}
	}
	return out, nil
}

package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBatchSize is the number of texts sent per embeddings request.
const DefaultBatchSize = 100

// OpenAIEmbedding calls the OpenAI embeddings API or a compatible endpoint.
type OpenAIEmbedding struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	apiKey    string
	baseURL   string
	batchSize int
	logger    *slog.Logger
}

// OpenAIEmbeddingOption configures an OpenAIEmbedding.
type OpenAIEmbeddingOption func(*OpenAIEmbedding)

// WithEmbeddingModel sets the model name.
func WithEmbeddingModel(model string) OpenAIEmbeddingOption {
	return func(o *OpenAIEmbedding) {
		if model != "" {
			o.model = openai.EmbeddingModel(model)
		}
	}
}

// WithEmbeddingAPIKey sets the API key.
func WithEmbeddingAPIKey(apiKey string) OpenAIEmbeddingOption {
	return func(o *OpenAIEmbedding) {
		o.apiKey = apiKey
	}
}

// WithEmbeddingBaseURL points the client at a compatible endpoint.
func WithEmbeddingBaseURL(baseURL string) OpenAIEmbeddingOption {
	return func(o *OpenAIEmbedding) {
		o.baseURL = baseURL
	}
}

// WithEmbeddingClient uses an existing client.
func WithEmbeddingClient(client *openai.Client) OpenAIEmbeddingOption {
	return func(o *OpenAIEmbedding) {
		o.client = client
	}
}

// WithBatchSize sets the number of texts per request.
func WithBatchSize(n int) OpenAIEmbeddingOption {
	return func(o *OpenAIEmbedding) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithEmbeddingLogger sets the logger.
func WithEmbeddingLogger(logger *slog.Logger) OpenAIEmbeddingOption {
	return func(o *OpenAIEmbedding) {
		o.logger = logger
	}
}

// NewOpenAIEmbedding creates a new OpenAIEmbedding. The API key defaults to
// OPENAI_API_KEY and the model to text-embedding-3-small.
func NewOpenAIEmbedding(opts ...OpenAIEmbeddingOption) *OpenAIEmbedding {
	o := &OpenAIEmbedding{
		model:     openai.SmallEmbedding3,
		batchSize: DefaultBatchSize,
		logger:    slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		if o.apiKey == "" {
			o.apiKey = os.Getenv("OPENAI_API_KEY")
		}
		cfg := openai.DefaultConfig(o.apiKey)
		if o.baseURL != "" {
			cfg.BaseURL = o.baseURL
		}
		o.client = openai.NewClientWithConfig(cfg)
	}
	return o
}

func (o *OpenAIEmbedding) GetTextEmbedding(ctx context.Context, text string) ([]float64, error) {
	return o.getEmbedding(ctx, text, "text")
}

func (o *OpenAIEmbedding) GetQueryEmbedding(ctx context.Context, query string) ([]float64, error) {
	return o.getEmbedding(ctx, query, "query")
}

func (o *OpenAIEmbedding) getEmbedding(ctx context.Context, input string, typeLabel string) ([]float64, error) {
	out, err := o.create(ctx, []string{input})
	if err != nil {
		o.logger.Error("GetEmbedding failed", "type", typeLabel, "error", err)
		return nil, err
	}
	return out[0], nil
}

// GetTextEmbeddingsBatch embeds texts in requests of at most the batch size.
func (o *OpenAIEmbedding) GetTextEmbeddingsBatch(ctx context.Context, texts []string, callback ProgressCallback) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := min(start+o.batchSize, len(texts))
		batch, err := o.create(ctx, texts[start:end])
		if err != nil {
			o.logger.Error("Batch embedding failed", "offset", start, "error", err)
			return nil, err
		}
		out = append(out, batch...)
		if callback != nil {
			callback(end, len(texts))
		}
	}
	return out, nil
}

func (o *OpenAIEmbedding) create(ctx context.Context, inputs []string) ([][]float64, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(inputs))
	}

	out := make([][]float64, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(inputs) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		// Convert float32 to float64
		v := make([]float64, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float64(x)
		}
		out[d.Index] = v
	}
	return out, nil
}

// Info returns the model info.
func (o *OpenAIEmbedding) Info() EmbeddingInfo {
	return LookupInfo(string(o.model))
}

var (
	_ EmbeddingModelWithBatch = (*OpenAIEmbedding)(nil)
	_ EmbeddingModelWithInfo  = (*OpenAIEmbedding)(nil)
)

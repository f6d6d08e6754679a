package embedding

// EmbeddingInfo describes the vectors a model produces.
type EmbeddingInfo struct {
	ModelName  string `json:"model_name"`
	Dimensions int    `json:"dimensions"`
	// MaxTokens bounds the input; profiles longer than this are truncated by the provider.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// knownModels lists the OpenAI embedding models profiles are indexed with.
var knownModels = map[string]EmbeddingInfo{
	"text-embedding-3-small": {ModelName: "text-embedding-3-small", Dimensions: 1536, MaxTokens: 8191},
	"text-embedding-3-large": {ModelName: "text-embedding-3-large", Dimensions: 3072, MaxTokens: 8191},
	"text-embedding-ada-002": {ModelName: "text-embedding-ada-002", Dimensions: 1536, MaxTokens: 8191},
}

// LookupInfo returns the info of a known model, or a 1536-dimension guess.
func LookupInfo(model string) EmbeddingInfo {
	if info, ok := knownModels[model]; ok {
		return info
	}
	return EmbeddingInfo{ModelName: model, Dimensions: 1536}
}

// ProgressCallback reports how many of total texts have been embedded.
type ProgressCallback func(current, total int)

// ToFloat32 converts an embedding for chromem, which keeps float32 vectors.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

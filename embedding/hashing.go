package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashingDimensions is the vector size of HashingEmbedding.
const DefaultHashingDimensions = 512

// HashingEmbedding is a local bag-of-words embedding built with the hashing
// trick. It needs no network access and is used when no embedding API is
// configured.
type HashingEmbedding struct {
	dims int
}

// NewHashingEmbedding creates a HashingEmbedding with dims dimensions.
func NewHashingEmbedding(dims int) *HashingEmbedding {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &HashingEmbedding{dims: dims}
}

func (h *HashingEmbedding) GetTextEmbedding(_ context.Context, text string) ([]float64, error) {
	return h.embed(text), nil
}

func (h *HashingEmbedding) GetQueryEmbedding(_ context.Context, query string) ([]float64, error) {
	return h.embed(query), nil
}

func (h *HashingEmbedding) embed(text string) []float64 {
	v := make([]float64, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		f := fnv.New32a()
		f.Write([]byte(w))
		sum := f.Sum32()
		sign := 1.0
		if sum&(1<<31) != 0 {
			sign = -1.0
		}
		v[int(sum%uint32(h.dims))] += sign
	}
	NormalizeInPlace(v)
	return v
}

// Info returns the model info.
func (h *HashingEmbedding) Info() EmbeddingInfo {
	return EmbeddingInfo{ModelName: "hashing", Dimensions: h.dims}
}

var _ EmbeddingModelWithInfo = (*HashingEmbedding)(nil)

package embedding

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when two vectors differ in length.
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
	// ErrZeroVector is returned for empty or all-zero vectors.
	ErrZeroVector = errors.New("embedding has zero magnitude")
)

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// CosineSimilarity scores two profile or query vectors in [-1, 1].
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}

	var dot float64
	for i, x := range a {
		dot += x * b[i]
	}
	return dot / (na * nb), nil
}

// NormalizeInPlace scales v to unit length. Zero vectors are left unchanged.
func NormalizeInPlace(v []float64) {
	n := norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}

// Package store holds vector stores for candidate profile retrieval.
package store

import (
	"context"
	"errors"
)

// ErrMissingEmbedding is returned when adding a record without a vector.
var ErrMissingEmbedding = errors.New("record has no embedding")

// Record is one embedded text with string metadata.
type Record struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float64         `json:"embedding,omitempty"`
}

// Match is a record returned by a similarity query.
type Match struct {
	Record
	Score float64 `json:"score"`
}

// Query describes a similarity search.
type Query struct {
	Embedding []float64
	TopK      int
	// Filters keeps records whose metadata equals every key/value pair.
	Filters map[string]string
}

// VectorStore is the interface for storing and querying vectors.
type VectorStore interface {
	// Add upserts records by ID.
	Add(ctx context.Context, records []Record) ([]string, error)
	// Query finds the top-k most similar records, best first.
	Query(ctx context.Context, query Query) ([]Match, error)
	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error
	// Count returns the number of stored records.
	Count() int
}

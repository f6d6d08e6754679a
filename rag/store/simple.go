package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aanchal1903/BusinessOps-Chatbot/embedding"
)

// SimpleVectorStore is a simple in-memory vector store.
type SimpleVectorStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewSimpleVectorStore creates a new SimpleVectorStore.
func NewSimpleVectorStore() *SimpleVectorStore {
	return &SimpleVectorStore{
		records: make(map[string]Record),
	}
}

func (s *SimpleVectorStore) Add(ctx context.Context, records []Record) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, errors.New("record ID cannot be empty")
		}
		if len(r.Embedding) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingEmbedding, r.ID)
		}
		s.records[r.ID] = r
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *SimpleVectorStore) Query(ctx context.Context, query Query) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for id, r := range s.records {
		if !matchesFilters(r.Metadata, query.Filters) {
			continue
		}
		score, err := embedding.CosineSimilarity(query.Embedding, r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate similarity for record %s: %w", id, err)
		}
		matches = append(matches, Match{Record: r, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if query.TopK >= 0 && query.TopK < len(matches) {
		matches = matches[:query.TopK]
	}
	return matches, nil
}

// Delete removes a record from the store by ID.
func (s *SimpleVectorStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Count returns the number of stored records.
func (s *SimpleVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matchesFilters(meta, filters map[string]string) bool {
	for k, v := range filters {
		if meta[k] != v {
			return false
		}
	}
	return true
}

var _ VectorStore = (*SimpleVectorStore)(nil)

// Package chromem provides a persistent vector store backed by chromem-go.
package chromem

import (
	"context"
	"fmt"
	"runtime"

	"github.com/aanchal1903/BusinessOps-Chatbot/embedding"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/store"
	"github.com/philippgille/chromem-go"
)

// ChromemStore is a vector store implementation using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore creates a new ChromemStore.
// If persistPath is empty, the store will be in-memory only.
func NewChromemStore(persistPath string, collectionName string) (*ChromemStore, error) {
	var db *chromem.DB
	if persistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create persistent chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are computed by the caller and passed explicitly.
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: collection,
	}, nil
}

// Add adds records to the collection. Records with an existing ID replace it.
func (s *ChromemStore) Add(ctx context.Context, records []store.Record) ([]string, error) {
	docs := make([]chromem.Document, len(records))
	ids := make([]string, len(records))

	for i, r := range records {
		if len(r.Embedding) == 0 {
			return nil, fmt.Errorf("%w: %s", store.ErrMissingEmbedding, r.ID)
		}
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Text,
			Metadata:  r.Metadata,
			Embedding: embedding.ToFloat32(r.Embedding),
		}
		ids[i] = r.ID
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents to chromem collection: %w", err)
	}
	return ids, nil
}

// Query finds the top-k most similar records to the query embedding.
func (s *ChromemStore) Query(ctx context.Context, query store.Query) ([]store.Match, error) {
	// chromem rejects a result count above the collection size
	topK := min(query.TopK, s.collection.Count())
	if topK <= 0 {
		return nil, nil
	}

	var where map[string]string
	if len(query.Filters) > 0 {
		where = query.Filters
	}

	res, err := s.collection.QueryEmbedding(ctx, embedding.ToFloat32(query.Embedding), topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromem collection: %w", err)
	}

	matches := make([]store.Match, len(res))
	for i, doc := range res {
		matches[i] = store.Match{
			Record: store.Record{
				ID:       doc.ID,
				Text:     doc.Content,
				Metadata: doc.Metadata,
			},
			Score: float64(doc.Similarity),
		}
	}
	return matches, nil
}

// Delete removes a record by ID.
func (s *ChromemStore) Delete(ctx context.Context, id string) error {
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

var _ store.VectorStore = (*ChromemStore)(nil)

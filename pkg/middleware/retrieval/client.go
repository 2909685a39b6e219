package retrieval

import (
	"context"
)

// VectorStore persists index entries and answers nearest-neighbour queries
// by cosine distance.
//
// Query returns at most k matches in ascending distance order. When two
// matches are equally distant, their relative order is the store's natural
// order: each implementation documents whether that is insertion order or
// key order, and it is deterministic. An empty store answers with no
// matches and no error.
//
// Example:
//
//	store := memory.New()
//	_ = store.Upsert(ctx, []retrieval.IndexEntry{retrieval.NewIndexEntry(doc, vec)})
//	matches, err := store.Query(ctx, queryVec, 4)
type VectorStore interface {
	// Upsert inserts or replaces entries by key.
	Upsert(ctx context.Context, entries []IndexEntry) error

	// Query returns the k nearest entries to vector.
	Query(ctx context.Context, vector EmbeddingVector, k int) ([]Match, error)

	// Stats reports the number of stored entries and their dimension.
	Stats(ctx context.Context) (Stats, error)

	// Exists reports which of keys are already stored.
	Exists(ctx context.Context, keys []string) (map[string]bool, error)

	// Health checks if the vector store is available.
	Health(ctx context.Context) error

	// Close releases any resources held by the client.
	Close() error
}

// EmbeddingProvider turns text into a vector.
type EmbeddingProvider interface {
	// Embed generates embeddings for text content
	Embed(ctx context.Context, text string) (EmbeddingVector, error)
}

// EmbeddingFunc adapts a function to EmbeddingProvider.
type EmbeddingFunc func(ctx context.Context, text string) (EmbeddingVector, error)

// Embed calls f(ctx, text).
func (f EmbeddingFunc) Embed(ctx context.Context, text string) (EmbeddingVector, error) {
	return f(ctx, text)
}

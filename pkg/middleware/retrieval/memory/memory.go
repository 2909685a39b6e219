// Package memory provides an in-process vector store.
//
// Entries live in an insertion-ordered map; queries scan every entry. Among
// equally distant matches, the entry inserted first ranks first. Replacing
// an entry keeps its original position.
package memory

import (
	"context"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

// Store is a goroutine-safe in-memory retrieval.VectorStore.
type Store struct {
	mu        sync.RWMutex
	entries   *orderedmap.OrderedMap[string, retrieval.IndexEntry]
	dimension int
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: orderedmap.New[string, retrieval.IndexEntry]()}
}

// Upsert inserts or replaces entries. All vectors must share one dimension.
func (s *Store) Upsert(ctx context.Context, entries []retrieval.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := retrieval.CheckDimension(entries, s.dimension)
	if err != nil {
		return calque.WrapErr(ctx, err, "memory upsert").WithKind(calque.ErrValidation)
	}
	s.dimension = dim

	for _, e := range entries {
		e.Vector = append(retrieval.EmbeddingVector(nil), e.Vector...)
		s.entries.Set(e.Key, e)
	}
	return nil
}

// Query scans every entry and returns the k nearest.
func (s *Store) Query(ctx context.Context, vector retrieval.EmbeddingVector, k int) ([]retrieval.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entries.Len() == 0 {
		return []retrieval.Match{}, nil
	}

	matches := make([]retrieval.Match, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		d, err := retrieval.CosineDistance(vector, pair.Value.Vector)
		if err != nil {
			return nil, calque.WrapErr(ctx, err, "memory query").WithKind(calque.ErrValidation)
		}
		matches = append(matches, retrieval.Match{Key: pair.Key, Distance: d, Document: pair.Value.Document})
	}
	return retrieval.TopK(matches, k), nil
}

// Stats reports the entry count and dimension.
func (s *Store) Stats(context.Context) (retrieval.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return retrieval.Stats{Count: s.entries.Len(), Dimension: s.dimension}, nil
}

// Exists reports which keys are stored.
func (s *Store) Exists(_ context.Context, keys []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := s.entries.Get(k); ok {
			found[k] = true
		}
	}
	return found, nil
}

// Keys returns the stored keys in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Health always succeeds.
func (s *Store) Health(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

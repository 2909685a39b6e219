package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemoryStore()
	if err != nil {
		t.Fatalf("NewInMemoryStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(key string, vec ...float32) retrieval.IndexEntry {
	return retrieval.IndexEntry{
		Key:    key,
		Vector: vec,
		Document: retrieval.Document{
			Content:  "Title: " + key,
			Source:   key,
			Metadata: map[string]any{"title": key},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stats, err := s.Stats(ctx)
	if err != nil || stats.Count != 0 || stats.Dimension != 0 {
		t.Fatalf("Stats() on empty store = %+v, %v", stats, err)
	}
	if matches, err := s.Query(ctx, retrieval.EmbeddingVector{1, 0}, 3); err != nil || len(matches) != 0 {
		t.Fatalf("Query() on empty store = %v, %v", matches, err)
	}

	if err := s.Upsert(ctx, []retrieval.IndexEntry{entry("c", 0, 1), entry("b", 1, 0), entry("a", 2, 0)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := s.Query(ctx, retrieval.EmbeddingVector{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := []string{"a", "b", "c"} // a and b tie; key order
	for i, m := range matches {
		if m.Key != want[i] {
			t.Errorf("match[%d] = %q, want %q", i, m.Key, want[i])
		}
	}
	if matches[0].Document.Metadata["title"] != "a" {
		t.Errorf("metadata not preserved: %v", matches[0].Document.Metadata)
	}

	stats, _ = s.Stats(ctx)
	if stats.Count != 3 || stats.Dimension != 2 {
		t.Errorf("Stats() = %+v, want count 3 dimension 2", stats)
	}

	found, err := s.Exists(ctx, []string{"a", "z"})
	if err != nil || !found["a"] || found["z"] {
		t.Errorf("Exists() = %v, %v", found, err)
	}
}

func TestStoreRejectsDimensionChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_ = s.Upsert(ctx, []retrieval.IndexEntry{entry("a", 1, 0)})

	if err := s.Upsert(ctx, []retrieval.IndexEntry{entry("b", 1, 0, 0)}); !errors.Is(err, calque.ErrValidation) {
		t.Errorf("Upsert() error = %v, want validation error", err)
	}
}

func TestStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_ = s.Upsert(ctx, []retrieval.IndexEntry{entry("a", 1, 0)})
	_ = s.Upsert(ctx, []retrieval.IndexEntry{entry("a", 0, 1)})

	stats, _ := s.Stats(ctx)
	if stats.Count != 1 {
		t.Errorf("Count = %d, want 1", stats.Count)
	}
	matches, _ := s.Query(ctx, retrieval.EmbeddingVector{0, 1}, 1)
	if len(matches) != 1 || matches[0].Distance > 1e-6 {
		t.Errorf("replaced vector not used: %+v", matches)
	}
}

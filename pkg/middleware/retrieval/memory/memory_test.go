package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

func entry(key string, vec ...float32) retrieval.IndexEntry {
	return retrieval.IndexEntry{
		Key:      key,
		Vector:   vec,
		Document: retrieval.Document{Content: "Title: " + key, Source: key},
	}
}

func TestStoreQuery(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		entries  []retrieval.IndexEntry
		query    retrieval.EmbeddingVector
		k        int
		wantKeys []string
	}{
		{
			name:     "empty store",
			query:    retrieval.EmbeddingVector{1, 0},
			k:        3,
			wantKeys: []string{},
		},
		{
			name:     "ascending distance",
			entries:  []retrieval.IndexEntry{entry("far", 0, 1), entry("near", 1, 0), entry("mid", 1, 1)},
			query:    retrieval.EmbeddingVector{1, 0},
			k:        3,
			wantKeys: []string{"near", "mid", "far"},
		},
		{
			name:     "k smaller than store",
			entries:  []retrieval.IndexEntry{entry("far", 0, 1), entry("near", 1, 0), entry("mid", 1, 1)},
			query:    retrieval.EmbeddingVector{1, 0},
			k:        2,
			wantKeys: []string{"near", "mid"},
		},
		{
			name:     "ties keep insertion order",
			entries:  []retrieval.IndexEntry{entry("b", 2, 0), entry("a", 1, 0), entry("c", 3, 0)},
			query:    retrieval.EmbeddingVector{1, 0},
			k:        3,
			wantKeys: []string{"b", "a", "c"},
		},
		{
			name:     "fewer entries than k",
			entries:  []retrieval.IndexEntry{entry("only", 1, 0)},
			query:    retrieval.EmbeddingVector{1, 0},
			k:        4,
			wantKeys: []string{"only"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New()
			if err := s.Upsert(ctx, tt.entries); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
			matches, err := s.Query(ctx, tt.query, tt.k)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(matches) != len(tt.wantKeys) {
				t.Fatalf("Query() returned %d matches, want %d", len(matches), len(tt.wantKeys))
			}
			for i, m := range matches {
				if m.Key != tt.wantKeys[i] {
					t.Errorf("match[%d] = %q, want %q", i, m.Key, tt.wantKeys[i])
				}
				if i > 0 && m.Distance < matches[i-1].Distance {
					t.Errorf("match[%d] distance %v below previous %v", i, m.Distance, matches[i-1].Distance)
				}
			}
		})
	}
}

func TestStoreUpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Upsert(ctx, []retrieval.IndexEntry{entry("a", 1, 0), entry("b", 0, 1)})
	_ = s.Upsert(ctx, []retrieval.IndexEntry{entry("a", 0, 1)})

	stats, _ := s.Stats(ctx)
	if stats.Count != 2 || stats.Dimension != 2 {
		t.Errorf("Stats() = %+v, want count 2 dimension 2", stats)
	}
	if keys := s.Keys(); keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
}

func TestStoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Upsert(ctx, []retrieval.IndexEntry{entry("a", 1, 0)})

	err := s.Upsert(ctx, []retrieval.IndexEntry{entry("b", 1, 0, 0)})
	if !errors.Is(err, calque.ErrValidation) {
		t.Errorf("Upsert() error = %v, want validation error", err)
	}
}

func TestStoreExists(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Upsert(ctx, []retrieval.IndexEntry{entry("a", 1, 0)})

	found, err := s.Exists(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !found["a"] || found["b"] {
		t.Errorf("Exists() = %v, want only a", found)
	}
}

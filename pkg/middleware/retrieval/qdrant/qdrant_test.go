package qdrant

import (
	"testing"

	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

func TestBuildPayload(t *testing.T) {
	t.Parallel()

	entry := retrieval.IndexEntry{
		Key: "https://www.imdb.com/title/tt11138512/",
		Document: retrieval.Document{
			Content: "Title: The Northman",
			Source:  "https://www.imdb.com/title/tt11138512/",
			Metadata: map[string]any{
				"title":   "The Northman",
				"year":    2022,
				"rating":  7.1,
				"adult":   false,
				"content": "ignored",
			},
		},
	}

	payload := BuildPayload(entry)

	if got := payload["content"].GetStringValue(); got != "Title: The Northman" {
		t.Errorf("content = %q, reserved field was overwritten", got)
	}
	if got := payload["year"].GetIntegerValue(); got != 2022 {
		t.Errorf("year = %d, want 2022", got)
	}
	if got := payload["rating"].GetDoubleValue(); got != 7.1 {
		t.Errorf("rating = %v, want 7.1", got)
	}

	m := MatchFromPoint(payload, 0.75)
	if m.Key != entry.Key || m.Document.Source != entry.Document.Source {
		t.Errorf("MatchFromPoint() key/source = %q/%q", m.Key, m.Document.Source)
	}
	if m.Distance != 0.25 {
		t.Errorf("Distance = %v, want 0.25", m.Distance)
	}
	if m.Document.Metadata["title"] != "The Northman" {
		t.Errorf("metadata title = %v", m.Document.Metadata["title"])
	}
	if v, ok := m.Document.Metadata["adult"].(bool); !ok || v {
		t.Errorf("metadata adult = %v, want false", m.Document.Metadata["adult"])
	}
}

func TestPointIDStable(t *testing.T) {
	t.Parallel()
	a := PointID("https://www.imdb.com/title/tt1/").GetUuid()
	b := PointID("https://www.imdb.com/title/tt1/").GetUuid()
	c := PointID("https://www.imdb.com/title/tt2/").GetUuid()

	if a == "" || a != b {
		t.Errorf("PointID not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different keys must map to different ids")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	if _, err := New(&Config{}); err == nil {
		t.Error("New() without URL should fail")
	}
	if _, err := New(&Config{URL: "http://localhost:notaport"}); err == nil {
		t.Error("New() with bad port should fail")
	}
}

package retrieval

import "fmt"

// Document is the unit of retrieval: rendered text plus the locator it
// came from.
//
// Content never contains the prompt document delimiter. Documents are
// immutable once built; stores keep their own copy.
type Document struct {
	Content  string         `json:"content"`            // Rendered text
	Source   string         `json:"source"`             // Absolute locator, also the index key
	Metadata map[string]any `json:"metadata,omitempty"` // String keys to scalar values
}

// Key returns the index key of the document.
func (d Document) Key() string {
	return d.Source
}

// EmbeddingVector represents a vector embedding.
type EmbeddingVector []float32

// IndexEntry pairs a document with its embedding under a unique key.
type IndexEntry struct {
	Key      string          `json:"key"`
	Vector   EmbeddingVector `json:"vector"`
	Document Document        `json:"document"`
}

// NewIndexEntry keys the entry by the document source.
func NewIndexEntry(doc Document, vector EmbeddingVector) IndexEntry {
	return IndexEntry{Key: doc.Key(), Vector: vector, Document: doc}
}

// Match is one query hit.
type Match struct {
	Key      string   `json:"key"`
	Distance float64  `json:"distance"` // Cosine distance, 0 is identical
	Document Document `json:"document"`
}

// Result is the ordered answer to a retrieval, most similar first.
type Result struct {
	Query   string  `json:"query"`
	K       int     `json:"k"`
	Matches []Match `json:"matches"`
}

// Documents returns the matched documents in rank order.
func (r *Result) Documents() []Document {
	if r == nil {
		return nil
	}
	docs := make([]Document, len(r.Matches))
	for i, m := range r.Matches {
		docs[i] = m.Document
	}
	return docs
}

// Stats describes the contents of a store.
type Stats struct {
	Count     int `json:"count"`
	Dimension int `json:"dimension"` // 0 while the store is empty
}

// CheckDimension validates that every entry has the given dimension, or
// the dimension of the first entry when want is 0. It returns the
// dimension in use.
func CheckDimension(entries []IndexEntry, want int) (int, error) {
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return want, fmt.Errorf("entry %q has an empty vector", e.Key)
		}
		if want == 0 {
			want = len(e.Vector)
			continue
		}
		if len(e.Vector) != want {
			return want, fmt.Errorf("entry %q has dimension %d, store uses %d", e.Key, len(e.Vector), want)
		}
	}
	return want, nil
}

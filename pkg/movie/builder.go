package movie

import (
	"context"
	"fmt"
	"strings"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

// DefaultBaseURL is the locator prefix for record ids.
const DefaultBaseURL = "https://www.imdb.com/title/"

// Delimiter separates rendered documents in a prompt. It never appears in
// built content.
const Delimiter = "========"

const (
	titleLabel       = "Title: "
	genreLabel       = "Genre: "
	descriptionLabel = "Description: "
)

// Builder renders records into documents.
type Builder struct {
	BaseURL string
}

// NewBuilder creates a builder for baseURL, or DefaultBaseURL when empty.
func NewBuilder(baseURL string) *Builder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Builder{BaseURL: baseURL}
}

// Build renders one record.
//
// It fails with calque.ErrValidation when the record has no title or id,
// or when a field would break the rendering: a newline in the title or a
// genre, a comma in a genre, or the document delimiter anywhere.
func (b *Builder) Build(rec Record) (retrieval.Document, error) {
	if err := validate(rec); err != nil {
		return retrieval.Document{}, err
	}

	base := b.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	id := strings.TrimSpace(rec.ID)

	return retrieval.Document{
		Content: RenderContent(rec.Title, rec.Genres, rec.Description),
		Source:  base + id + "/",
		Metadata: map[string]any{
			"title":   rec.Title,
			"genres":  strings.Join(rec.Genres, ","),
			"imdb_id": id,
		},
	}, nil
}

// BuildAll renders every record. Invalid records are left out of the
// returned documents and reported in errs, one entry per failure.
func (b *Builder) BuildAll(records []Record) (docs []retrieval.Document, errs []error) {
	docs = make([]retrieval.Document, 0, len(records))
	for i, rec := range records {
		doc, err := b.Build(rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d (%q): %w", i, rec.ID, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

// RenderContent formats the three labeled lines.
func RenderContent(title string, genres []string, description string) string {
	var sb strings.Builder
	sb.WriteString(titleLabel)
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(genreLabel)
	sb.WriteString(strings.Join(genres, ","))
	sb.WriteString("\n")
	sb.WriteString(descriptionLabel)
	sb.WriteString(description)
	return sb.String()
}

// ParseContent recovers the fields of content produced by RenderContent.
// The description may span several lines.
func ParseContent(content string) (title string, genres []string, description string, err error) {
	lines := strings.SplitN(content, "\n", 3)
	if len(lines) != 3 {
		return "", nil, "", invalid("content has %d lines, want at least 3", len(lines))
	}

	var ok bool
	if title, ok = strings.CutPrefix(lines[0], titleLabel); !ok {
		return "", nil, "", invalid("missing %q line", strings.TrimSpace(titleLabel))
	}
	genreLine, ok := strings.CutPrefix(lines[1], genreLabel)
	if !ok {
		return "", nil, "", invalid("missing %q line", strings.TrimSpace(genreLabel))
	}
	if description, ok = strings.CutPrefix(lines[2], descriptionLabel); !ok {
		return "", nil, "", invalid("missing %q line", strings.TrimSpace(descriptionLabel))
	}
	if genreLine != "" {
		genres = strings.Split(genreLine, ",")
	}
	return title, genres, description, nil
}

func validate(rec Record) error {
	switch {
	case strings.TrimSpace(rec.Title) == "":
		return invalid("record %q has no title", rec.ID)
	case strings.TrimSpace(rec.ID) == "":
		return invalid("record %q has no id", rec.Title)
	case strings.ContainsAny(rec.Title, "\r\n"):
		return invalid("title of %q contains a newline", rec.ID)
	case strings.ContainsAny(rec.ID, "/\r\n \t"):
		return invalid("id %q is not a single path segment", rec.ID)
	}

	for _, g := range rec.Genres {
		if strings.ContainsAny(g, ",\r\n") {
			return invalid("genre %q of %q contains a comma or newline", g, rec.ID)
		}
		if g == "" {
			return invalid("record %q has an empty genre", rec.ID)
		}
	}

	for _, field := range append([]string{rec.Title, rec.Description, rec.ID}, rec.Genres...) {
		if strings.Contains(field, Delimiter) {
			return invalid("record %q contains the document delimiter", rec.ID)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return calque.NewErr(context.Background(), fmt.Sprintf(format, args...)).WithKind(calque.ErrValidation)
}

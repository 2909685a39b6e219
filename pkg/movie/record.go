// Package movie turns tabular movie records into retrieval documents.
//
// A Record is one input row. A Builder renders it into a
// retrieval.Document whose content is
//
//	Title: <title>
//	Genre: <genre>,<genre>
//	Description: <description>
//
// and whose source is the base locator followed by the record id. The
// rendering is reversible with ParseContent.
package movie

import (
	"fmt"
	"strings"
)

// TypeMovie is the type tag kept by FilterMovies.
const TypeMovie = "movie"

// Record is one row of movie input.
type Record struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description" json:"description"`
	Genres      GenreList `yaml:"genres" json:"genres"`
	Type        string    `yaml:"type" json:"type"`
}

// GenreList is an ordered list of genres. In record files it may be
// written as a list or as one comma-separated string.
type GenreList []string

// UnmarshalYAML accepts both a sequence and a comma-separated scalar.
func (g *GenreList) UnmarshalYAML(unmarshal func(any) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*g = trimAll(list)
		return nil
	}

	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("genres must be a list or a comma-separated string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*g = nil
		return nil
	}
	*g = trimAll(strings.Split(s, ","))
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FilterMovies keeps the records whose type is "movie", ignoring case and
// surrounding space. Order is preserved.
func FilterMovies(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.EqualFold(strings.TrimSpace(r.Type), TypeMovie) {
			out = append(out, r)
		}
	}
	return out
}

package movie

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/calque-ai/movierag/pkg/calque"
)

var northman = Record{
	ID:          "tt11138512",
	Title:       "The Northman",
	Description: "From visionary director Robert Eggers comes The Northman, an action-filled epic that pits Prince Amleth against his uncle.",
	Genres:      GenreList{"Action", "Adventura", "Drama", "History"},
	Type:        "movie",
}

func TestBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		rec     Record
		wantErr error
		checkFn func(t *testing.T, content, source string)
	}{
		{
			name: "northman",
			rec:  northman,
			checkFn: func(t *testing.T, content, source string) {
				want := "Title: The Northman\nGenre: Action,Adventura,Drama,History\nDescription: " + northman.Description
				if content != want {
					t.Errorf("content = %q, want %q", content, want)
				}
				if source != "https://www.imdb.com/title/tt11138512/" {
					t.Errorf("source = %q", source)
				}
			},
		},
		{
			name: "custom base without slash",
			base: "https://movies.example.com/m",
			rec:  Record{ID: "42", Title: "Heat"},
			checkFn: func(t *testing.T, content, source string) {
				if source != "https://movies.example.com/m/42/" {
					t.Errorf("source = %q", source)
				}
				if !strings.Contains(content, "Genre: \n") {
					t.Errorf("empty genre line missing: %q", content)
				}
			},
		},
		{name: "missing title", rec: Record{ID: "tt1"}, wantErr: calque.ErrValidation},
		{name: "missing id", rec: Record{Title: "Heat"}, wantErr: calque.ErrValidation},
		{name: "newline in title", rec: Record{ID: "tt1", Title: "Heat\nTwo"}, wantErr: calque.ErrValidation},
		{name: "comma in genre", rec: Record{ID: "tt1", Title: "Heat", Genres: GenreList{"Crime,Drama"}}, wantErr: calque.ErrValidation},
		{name: "delimiter in description", rec: Record{ID: "tt1", Title: "Heat", Description: "a ======== b"}, wantErr: calque.ErrValidation},
		{name: "slash in id", rec: Record{ID: "tt1/x", Title: "Heat"}, wantErr: calque.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := NewBuilder(tt.base).Build(tt.rec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			tt.checkFn(t, doc.Content, doc.Source)
		})
	}
}

func TestBuildMetadata(t *testing.T) {
	t.Parallel()

	doc, err := NewBuilder("").Build(northman)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"title": "The Northman", "genres": "Action,Adventura,Drama,History", "imdb_id": "tt11138512"}
	if !reflect.DeepEqual(doc.Metadata, want) {
		t.Errorf("Metadata = %v, want %v", doc.Metadata, want)
	}
	if doc.Key() != doc.Source {
		t.Errorf("Key() = %q, want source", doc.Key())
	}
}

func TestBuildAllSkipsInvalid(t *testing.T) {
	t.Parallel()

	docs, errs := NewBuilder("").BuildAll([]Record{northman, {ID: "tt2"}, {ID: "tt3", Title: "Heat"}})
	if len(docs) != 2 || len(errs) != 1 {
		t.Fatalf("BuildAll() = %d docs, %d errs; want 2, 1", len(docs), len(errs))
	}
	if !errors.Is(errs[0], calque.ErrValidation) || !strings.Contains(errs[0].Error(), "record 1") {
		t.Errorf("errs[0] = %v", errs[0])
	}
}

func TestParseContentRoundTrip(t *testing.T) {
	t.Parallel()

	recs := []Record{
		northman,
		{ID: "1", Title: "Title: nested label", Genres: GenreList{"Drama"}, Description: "Line one.\nLine two, with Genre: inside."},
		{ID: "2", Title: "  spaced  ", Genres: GenreList{"Sci-Fi & Fantasy", "Anime"}, Description: ""},
	}
	for _, rec := range recs {
		doc, err := NewBuilder("").Build(rec)
		if err != nil {
			t.Fatalf("Build(%q) error = %v", rec.ID, err)
		}
		title, genres, desc, err := ParseContent(doc.Content)
		if err != nil {
			t.Fatalf("ParseContent(%q) error = %v", rec.ID, err)
		}
		if title != rec.Title || desc != rec.Description || !reflect.DeepEqual(genres, []string(rec.Genres)) {
			t.Errorf("round trip of %q = (%q, %v, %q)", rec.ID, title, genres, desc)
		}
	}
}

func TestParseContentRejects(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "Title: a\nGenre: b", "Name: a\nGenre: b\nDescription: c", "Title: a\nGenres: b\nDescription: c"} {
		if _, _, _, err := ParseContent(content); !errors.Is(err, calque.ErrValidation) {
			t.Errorf("ParseContent(%q) error = %v, want validation error", content, err)
		}
	}
}

func TestFilterMovies(t *testing.T) {
	t.Parallel()

	in := []Record{{ID: "1", Type: "Movie"}, {ID: "2", Type: "TV Show"}, {ID: "3", Type: " movie "}, {ID: "4"}}
	got := FilterMovies(in)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("FilterMovies() = %+v", got)
	}
}

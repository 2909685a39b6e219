package movie

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantGenres [][]string
		wantErr    bool
	}{
		{
			name: "yaml list genres",
			input: `
- id: tt11138512
  title: The Northman
  type: movie
  genres: [Action, Adventura, Drama, History]
  description: An epic viking revenge tale.
`,
			wantGenres: [][]string{{"Action", "Adventura", "Drama", "History"}},
		},
		{
			name: "yaml string genres",
			input: `
- id: tt1
  title: Heat
  genres: "Crime, Drama ,Thriller"
- id: tt2
  title: Empty
  genres: ""
`,
			wantGenres: [][]string{{"Crime", "Drama", "Thriller"}, nil},
		},
		{
			name:       "json",
			input:      `[{"id":"tt3","title":"Alien","type":"movie","genres":["Horror","Sci-Fi"]}]`,
			wantGenres: [][]string{{"Horror", "Sci-Fi"}},
		},
		{
			name:    "genres of wrong shape",
			input:   "- id: tt4\n  title: X\n  genres: {a: b}\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			recs, err := ReadRecords(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("ReadRecords() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadRecords() error = %v", err)
			}
			if len(recs) != len(tt.wantGenres) {
				t.Fatalf("got %d records, want %d", len(recs), len(tt.wantGenres))
			}
			for i, want := range tt.wantGenres {
				if len(want) == 0 && len(recs[i].Genres) == 0 {
					continue
				}
				if !reflect.DeepEqual([]string(recs[i].Genres), want) {
					t.Errorf("record %d genres = %v, want %v", i, recs[i].Genres, want)
				}
			}
		})
	}
}

func TestLoadRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "movies.yaml")
	if err := os.WriteFile(path, []byte("- id: tt1\n  title: Heat\n  type: movie\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	recs, err := LoadRecords(path)
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "Heat" {
		t.Errorf("LoadRecords() = %+v", recs)
	}

	if _, err := LoadRecords(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadRecords() on a missing file should fail")
	}
}

package ingest

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/ai"
	"github.com/calque-ai/movierag/pkg/middleware/ctrl"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval/memory"
	"github.com/calque-ai/movierag/pkg/movie"
)

var records = []movie.Record{
	{ID: "tt11138512", Title: "The Northman", Description: "A viking prince seeks revenge.", Genres: movie.GenreList{"Action", "Drama"}, Type: "movie"},
	{ID: "tt0114709", Title: "Toy Story", Description: "Toys come to life.", Genres: movie.GenreList{"Animation"}, Type: "Movie"},
	{ID: "tt0903747", Title: "Breaking Bad", Description: "A teacher turns to crime.", Genres: movie.GenreList{"Crime"}, Type: "show"},
	{ID: "tt0000001", Title: "", Description: "No title.", Type: "movie"},
	{ID: "tt11138512", Title: "The Northman (again)", Description: "Duplicate id.", Type: "movie"},
}

var noRetry = ctrl.RetryPolicy{MaxRetries: 0, Retryable: ctrl.IsTransient}

// countingStore records upsert batch sizes and can fail on demand.
type countingStore struct {
	*memory.Store
	mu        sync.Mutex
	batches   []int
	existsErr error
}

func (s *countingStore) Upsert(ctx context.Context, entries []retrieval.IndexEntry) error {
	s.mu.Lock()
	s.batches = append(s.batches, len(entries))
	s.mu.Unlock()
	return s.Store.Upsert(ctx, entries)
}

func (s *countingStore) Exists(ctx context.Context, keys []string) (map[string]bool, error) {
	if s.existsErr != nil {
		return nil, s.existsErr
	}
	return s.Store.Exists(ctx, keys)
}

func TestRun(t *testing.T) {
	t.Parallel()

	client := ai.NewMockClient()
	store := memory.New()
	in := New(client, store)

	report, err := in.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := Report{Policy: "missing", Records: 5, Movies: 4, Invalid: 1, Duplicates: 1, Embedded: 2, Upserted: 2}
	got := *report
	got.Duration, got.Errors = 0, nil
	if !reflect.DeepEqual(got, want) {
		t.Errorf("report = %+v, want %+v", got, want)
	}
	if len(report.Errors) != 1 || !errors.Is(report.Errors[0], calque.ErrValidation) {
		t.Errorf("errors = %v", report.Errors)
	}

	stats, _ := store.Stats(context.Background())
	if stats.Count != 2 || stats.Dimension != ai.MockDimension {
		t.Errorf("stats = %+v", stats)
	}
	if keys := store.Keys(); keys[0] != "https://www.imdb.com/title/tt11138512/" {
		t.Errorf("first key = %q", keys[0])
	}
}

func TestRunPolicies(t *testing.T) {
	t.Parallel()

	more := append(records[:2:2], movie.Record{ID: "tt0120338", Title: "Titanic", Description: "A ship sinks.", Genres: movie.GenreList{"Romance"}, Type: "movie"})

	tests := []struct {
		name    string
		policy  Policy
		checkFn func(t *testing.T, report *Report, client *ai.MockClient, store *memory.Store)
	}{
		{
			name:   "missing only embeds new documents",
			policy: MissingOnly,
			checkFn: func(t *testing.T, report *Report, client *ai.MockClient, store *memory.Store) {
				if report.Existing != 2 || report.Upserted != 1 || report.Skipped {
					t.Errorf("report = %+v", report)
				}
				if client.EmbedCalls() != 1 {
					t.Errorf("embed calls = %d, want 1", client.EmbedCalls())
				}
				if stats, _ := store.Stats(context.Background()); stats.Count != 3 {
					t.Errorf("count = %d, want 3", stats.Count)
				}
			},
		},
		{
			name:   "skip if not empty does nothing",
			policy: SkipIfNotEmpty,
			checkFn: func(t *testing.T, report *Report, client *ai.MockClient, store *memory.Store) {
				if !report.Skipped || report.Upserted != 0 {
					t.Errorf("report = %+v", report)
				}
				if client.EmbedCalls() != 0 {
					t.Errorf("embed calls = %d, want 0", client.EmbedCalls())
				}
				if stats, _ := store.Stats(context.Background()); stats.Count != 2 {
					t.Errorf("count = %d, want 2", stats.Count)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := memory.New()
			if _, err := New(ai.NewMockClient(), store).Run(context.Background(), records); err != nil {
				t.Fatal(err)
			}

			client := ai.NewMockClient()
			report, err := New(client, store, WithPolicy(tt.policy)).Run(context.Background(), more)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			tt.checkFn(t, report, client, store)
		})
	}
}

func TestRunBatches(t *testing.T) {
	t.Parallel()

	var recs []movie.Record
	for _, id := range []string{"tt1", "tt2", "tt3", "tt4", "tt5"} {
		recs = append(recs, movie.Record{ID: id, Title: "Movie " + id, Type: "movie"})
	}
	store := &countingStore{Store: memory.New()}

	report, err := New(ai.NewMockClient(), store, WithBatchSize(2), WithWorkers(3), WithRateLimit(1000, time.Second)).Run(context.Background(), recs)
	if err != nil {
		t.Fatal(err)
	}
	if report.Upserted != 5 {
		t.Errorf("upserted = %d", report.Upserted)
	}
	if len(store.batches) != 3 || store.batches[0] != 2 || store.batches[2] != 1 {
		t.Errorf("batches = %v, want [2 2 1]", store.batches)
	}
	keys := store.Keys()
	for i, id := range []string{"tt1", "tt2", "tt3", "tt4", "tt5"} {
		if keys[i] != movie.DefaultBaseURL+id+"/" {
			t.Errorf("keys[%d] = %q, order not preserved", i, keys[i])
		}
	}
}

func TestRunEmbeddingFailure(t *testing.T) {
	t.Parallel()

	unauthorized := ai.NewProviderError("mock", http.StatusUnauthorized, errors.New("bad key"))
	client := ai.NewMockClient().WithEmbedErrors(unauthorized)
	store := memory.New()

	report, err := New(client, store, WithRetry(noRetry), WithWorkers(1)).Run(context.Background(), records[:2])
	if !errors.Is(err, calque.ErrEmbeddingService) {
		t.Fatalf("Run() error = %v, want ErrEmbeddingService", err)
	}
	if report.Failed != 1 || report.Upserted != 1 {
		t.Errorf("report = %+v", report)
	}

	// A second run stores only what is still missing.
	report, err = New(client, store).Run(context.Background(), records[:2])
	if err != nil {
		t.Fatal(err)
	}
	if report.Existing != 1 || report.Upserted != 1 {
		t.Errorf("second report = %+v", report)
	}
}

func TestRunStoreUnavailable(t *testing.T) {
	t.Parallel()

	store := &countingStore{Store: memory.New(), existsErr: errors.New("connection refused")}
	client := ai.NewMockClient()

	_, err := New(client, store).Run(context.Background(), records)
	if !errors.Is(err, calque.ErrStoreUnavailable) {
		t.Fatalf("Run() error = %v, want ErrStoreUnavailable", err)
	}
	if client.EmbedCalls() != 0 {
		t.Errorf("embed calls = %d, want 0", client.EmbedCalls())
	}
}

func TestRunInProgress(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	embedder := retrieval.EmbeddingFunc(func(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
		once.Do(func() { close(started) })
		<-release
		return ai.HashEmbedding(text, 8), nil
	})
	in := New(embedder, memory.New(), WithWorkers(1))

	done := make(chan error, 1)
	go func() {
		_, err := in.Run(context.Background(), records[:1])
		done <- err
	}()
	<-started

	if _, err := in.Run(context.Background(), records[:1]); !errors.Is(err, ErrIngestInProgress) {
		t.Errorf("concurrent Run() error = %v, want ErrIngestInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Run() error = %v", err)
	}

	if _, err := in.Run(context.Background(), records[:1]); err != nil {
		t.Errorf("Run() after completion error = %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Policy{"": MissingOnly, "missing": MissingOnly, "skip-if-not-empty": SkipIfNotEmpty} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
		if in != "" && got.String() != in {
			t.Errorf("%v.String() = %q", got, got.String())
		}
	}
	if _, err := ParsePolicy("always"); err == nil {
		t.Error("ParsePolicy(always) should fail")
	}
}

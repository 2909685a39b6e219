// Package ingest loads movie records into a vector store.
//
// Ingestion filters the records to movies, builds their documents, skips
// the ones already stored, embeds the rest in a bounded worker pool under
// a rate limit and upserts them in batches. Re-running it against the
// same store does not duplicate entries.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/ctrl"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
	"github.com/calque-ai/movierag/pkg/movie"
)

// ErrIngestInProgress is returned when Run is called while another Run on
// the same Ingester has not finished.
var ErrIngestInProgress = errors.New("ingestion already in progress")

// Policy decides what a run does with a store that already has entries.
type Policy int

const (
	// MissingOnly embeds and stores only documents whose key is not
	// stored yet.
	MissingOnly Policy = iota

	// SkipIfNotEmpty does nothing when the store holds any entry.
	SkipIfNotEmpty
)

func (p Policy) String() string {
	if p == SkipIfNotEmpty {
		return "skip-if-not-empty"
	}
	return "missing"
}

// ParsePolicy reads "missing" or "skip-if-not-empty".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "missing":
		return MissingOnly, nil
	case "skip-if-not-empty":
		return SkipIfNotEmpty, nil
	}
	return MissingOnly, fmt.Errorf("unknown ingest policy %q", s)
}

// Config holds the ingestion settings.
type Config struct {
	Policy    Policy
	Workers   int           // Concurrent embedding calls
	Rate      int           // Embedding calls per RatePer, 0 for no limit
	RatePer   time.Duration //
	BatchSize int           // Entries per upsert
	Retry     ctrl.RetryPolicy
	BaseURL   string // Source locator prefix
}

// Option configures an Ingester.
type Option func(*Config)

// WithPolicy sets the existing-data policy.
func WithPolicy(p Policy) Option { return func(c *Config) { c.Policy = p } }

// WithWorkers sets the embedding pool size.
func WithWorkers(n int) Option { return func(c *Config) { c.Workers = n } }

// WithRateLimit allows n embedding calls per interval.
func WithRateLimit(n int, per time.Duration) Option {
	return func(c *Config) {
		c.Rate = n
		c.RatePer = per
	}
}

// WithBatchSize sets the number of entries per upsert.
func WithBatchSize(n int) Option { return func(c *Config) { c.BatchSize = n } }

// WithRetry sets the per-document embedding retry policy.
func WithRetry(policy ctrl.RetryPolicy) Option { return func(c *Config) { c.Retry = policy } }

// WithBaseURL sets the source locator prefix.
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// Report summarizes a run.
type Report struct {
	Policy     string        `json:"policy"`
	Records    int           `json:"records"`
	Movies     int           `json:"movies"`
	Invalid    int           `json:"invalid"`
	Duplicates int           `json:"duplicates"`
	Existing   int           `json:"existing"`
	Embedded   int           `json:"embedded"`
	Failed     int           `json:"failed"`
	Upserted   int           `json:"upserted"`
	Skipped    bool          `json:"skipped"` // SkipIfNotEmpty found a non-empty store
	Duration   time.Duration `json:"duration"`
	Errors     []error       `json:"-"`
}

// Ingester writes documents into one store. Runs on the same Ingester are
// serialized; a concurrent Run fails fast with ErrIngestInProgress.
type Ingester struct {
	mu       sync.Mutex
	embedder retrieval.EmbeddingProvider
	store    retrieval.VectorStore
	builder  *movie.Builder
	limiter  *ctrl.Limiter
	config   Config
}

// New creates an Ingester with four workers, batches of 64, no rate limit
// and the MissingOnly policy.
func New(embedder retrieval.EmbeddingProvider, store retrieval.VectorStore, opts ...Option) *Ingester {
	cfg := Config{
		Policy:    MissingOnly,
		Workers:   4,
		BatchSize: 64,
		Retry:     ctrl.DefaultRetryPolicy(),
		BaseURL:   movie.DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Ingester{
		embedder: embedder,
		store:    store,
		builder:  movie.NewBuilder(cfg.BaseURL),
		limiter:  ctrl.NewLimiter(cfg.Rate, cfg.RatePer),
		config:   cfg,
	}
}

// Run ingests records.
//
// Invalid records are skipped, logged and counted. Documents that fail
// to embed are counted too; the others are still stored and the run
// returns calque.ErrEmbeddingService so a later run can fill the gaps.
// Store failures end the run with calque.ErrStoreUnavailable.
func (in *Ingester) Run(ctx context.Context, records []movie.Record) (*Report, error) {
	if !in.mu.TryLock() {
		return nil, ErrIngestInProgress
	}
	defer in.mu.Unlock()

	start := time.Now()
	report := &Report{Policy: in.config.Policy.String(), Records: len(records)}
	defer func() { report.Duration = time.Since(start) }()

	movies := movie.FilterMovies(records)
	report.Movies = len(movies)

	docs, errs := in.builder.BuildAll(movies)
	for _, err := range errs {
		calque.LogWarn(ctx, "skipping invalid record", "error", err)
	}
	report.Invalid = len(errs)
	report.Errors = append(report.Errors, errs...)

	docs, report.Duplicates = dedupe(docs)

	pending, err := in.pending(ctx, docs, report)
	if err != nil || len(pending) == 0 {
		return report, err
	}

	entries, failures := in.embed(ctx, pending)
	report.Embedded = len(entries)
	report.Failed = len(failures)
	report.Errors = append(report.Errors, failures...)

	if err := in.upsert(ctx, entries, report); err != nil {
		return report, err
	}

	calque.LogInfo(ctx, "ingestion finished",
		"movies", report.Movies,
		"invalid", report.Invalid,
		"existing", report.Existing,
		"upserted", report.Upserted,
		"failed", report.Failed)

	if len(failures) > 0 {
		return report, calque.WrapErr(ctx, failures[0], "embed documents").
			WithKind(calque.ErrEmbeddingService).
			Tag(slog.Int("failed", len(failures)))
	}
	return report, nil
}

// pending applies the policy and returns the documents to embed.
func (in *Ingester) pending(ctx context.Context, docs []retrieval.Document, report *Report) ([]retrieval.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	if in.config.Policy == SkipIfNotEmpty {
		stats, err := in.store.Stats(ctx)
		if err != nil {
			return nil, calque.WrapErr(ctx, err, "read store stats").WithKind(calque.ErrStoreUnavailable)
		}
		if stats.Count > 0 {
			calque.LogInfo(ctx, "store is not empty, skipping ingestion", "count", stats.Count)
			report.Skipped = true
			return nil, nil
		}
		return docs, nil
	}

	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = d.Key()
	}
	exists, err := in.store.Exists(ctx, keys)
	if err != nil {
		return nil, calque.WrapErr(ctx, err, "check existing documents").WithKind(calque.ErrStoreUnavailable)
	}

	missing := make([]retrieval.Document, 0, len(docs))
	for _, d := range docs {
		if exists[d.Key()] {
			report.Existing++
			continue
		}
		missing = append(missing, d)
	}
	return missing, nil
}

// embed computes vectors in the worker pool. Entries keep the order of
// docs; failures are returned separately.
func (in *Ingester) embed(ctx context.Context, docs []retrieval.Document) ([]retrieval.IndexEntry, []error) {
	results := make([]retrieval.IndexEntry, len(docs))
	errs := make([]error, len(docs))

	pool, err := ants.NewPool(in.config.Workers, ants.WithPanicHandler(func(p any) {
		calque.LogError(ctx, "embedding worker panicked", fmt.Errorf("%v", p))
	}))
	if err != nil {
		return nil, []error{fmt.Errorf("create worker pool: %w", err)}
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		errs[i] = fmt.Errorf("%s: not embedded", doc.Key())
		task := func() {
			defer wg.Done()
			vec, err := in.embedOne(ctx, doc.Content)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", doc.Key(), err)
				return
			}
			results[i] = retrieval.NewIndexEntry(doc, vec)
			errs[i] = nil
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("%s: submit: %w", doc.Key(), err)
		}
	}
	wg.Wait()

	var entries []retrieval.IndexEntry
	var failures []error
	for i := range docs {
		if errs[i] != nil {
			calque.LogWarn(ctx, "embedding failed", "source", docs[i].Key(), "error", errs[i])
			failures = append(failures, errs[i])
			continue
		}
		entries = append(entries, results[i])
	}
	return entries, failures
}

func (in *Ingester) embedOne(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	var vec retrieval.EmbeddingVector
	err := ctrl.Retry(ctx, in.config.Retry, func(ctx context.Context) error {
		if err := in.limiter.Wait(ctx); err != nil {
			return err
		}
		v, err := in.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return errors.New("empty embedding")
		}
		vec = v
		return nil
	})
	return vec, err
}

func (in *Ingester) upsert(ctx context.Context, entries []retrieval.IndexEntry, report *Report) error {
	for start := 0; start < len(entries); start += in.config.BatchSize {
		end := min(start+in.config.BatchSize, len(entries))
		if err := in.store.Upsert(ctx, entries[start:end]); err != nil {
			return calque.WrapErr(ctx, err, "upsert batch").
				WithKind(calque.ErrStoreUnavailable).
				Tags(slog.Int("batch_start", start), slog.Int("batch_size", end-start))
		}
		report.Upserted += end - start
		calque.LogDebug(ctx, "upserted batch", "size", end-start, "total", report.Upserted)
	}
	return nil
}

// dedupe keeps the first document per key.
func dedupe(docs []retrieval.Document) ([]retrieval.Document, int) {
	seen := make(map[string]bool, len(docs))
	out := docs[:0:0]
	for _, d := range docs {
		if seen[d.Key()] {
			continue
		}
		seen[d.Key()] = true
		out = append(out, d)
	}
	return out, len(docs) - len(out)
}

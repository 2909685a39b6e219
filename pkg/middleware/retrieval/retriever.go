package retrieval

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/ctrl"
)

// DefaultK is the number of documents retrieved when the caller does not
// choose one.
const DefaultK = 4

// Retriever embeds a query and asks the store for its nearest documents.
//
// Example:
//
//	r := retrieval.NewRetriever(embedder, store)
//	result, err := r.Retrieve(ctx, "What's a good movie about an epic viking?", 1)
type Retriever struct {
	embedder     EmbeddingProvider
	store        VectorStore
	retry        ctrl.RetryPolicy
	embedTimeout time.Duration
	queryTimeout time.Duration
}

// Option configures a Retriever.
type Option interface {
	Apply(*Retriever)
}

type retryOption struct{ policy ctrl.RetryPolicy }

func (o retryOption) Apply(r *Retriever) { r.retry = o.policy }

type timeoutOption struct{ embed, query time.Duration }

func (o timeoutOption) Apply(r *Retriever) {
	r.embedTimeout = o.embed
	r.queryTimeout = o.query
}

// WithRetry replaces the embedding retry policy. MaxRetries 0 disables
// retries.
func WithRetry(policy ctrl.RetryPolicy) Option {
	return retryOption{policy: policy}
}

// WithTimeouts bounds each embedding attempt and each store query.
// Zero leaves the call bounded only by the caller's context.
func WithTimeouts(embed, query time.Duration) Option {
	return timeoutOption{embed: embed, query: query}
}

// NewRetriever creates a Retriever. Embedding calls get one retry for
// transient errors by default.
func NewRetriever(embedder EmbeddingProvider, store VectorStore, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		retry:    ctrl.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt.Apply(r)
	}
	return r
}

// Store returns the backing store.
func (r *Retriever) Store() VectorStore {
	return r.store
}

// Retrieve returns up to k documents closest to query, most similar first.
//
// Input: query text, k >= 1
// Output: *Result with len(Matches) <= k, ordered by non-decreasing distance
// Behavior:
//   - empty query or k < 1: calque.ErrValidation
//   - embedding failure or timeout after the retry budget: calque.ErrEmbeddingService
//   - store failure: calque.ErrStoreUnavailable, not retried
//   - empty store: empty result, nil error
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, calque.NewErr(ctx, "query is empty").WithKind(calque.ErrValidation)
	}
	if k < 1 {
		return nil, calque.NewErr(ctx, "k must be at least 1").
			WithKind(calque.ErrValidation).
			Tag(slog.Int("k", k))
	}

	var vector EmbeddingVector
	err := ctrl.Retry(ctx, r.retry, func(ctx context.Context) error {
		return ctrl.WithTimeout(ctx, r.embedTimeout, func(ctx context.Context) error {
			v, err := r.embedder.Embed(ctx, query)
			if err != nil {
				return err
			}
			if len(v) == 0 {
				return calque.NewErr(ctx, "embedding service returned an empty vector")
			}
			vector = v
			return nil
		})
	})
	if err != nil {
		return nil, calque.WrapErr(ctx, err, "embed query").WithKind(calque.ErrEmbeddingService)
	}

	var matches []Match
	err = ctrl.WithTimeout(ctx, r.queryTimeout, func(ctx context.Context) error {
		var qerr error
		matches, qerr = r.store.Query(ctx, vector, k)
		return qerr
	})
	if err != nil {
		return nil, calque.WrapErr(ctx, err, "query vector store").
			WithKind(calque.ErrStoreUnavailable).
			Tag(slog.Int("k", k))
	}

	matches = TopK(matches, k)
	calque.LogDebug(ctx, "retrieved documents", "k", k, "found", len(matches))

	return &Result{Query: query, K: k, Matches: matches}, nil
}

// Handler exposes the retriever as a stage: query text in, Result JSON out.
//
// Input: string query
// Output: Result JSON
// Behavior: BUFFERED - reads the whole query before searching
//
// Example:
//
//	out, err := calque.Serve(ctx, r.Handler(4), "space opera with pirates")
func (r *Retriever) Handler(k int) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		var query string
		if err := calque.Read(req, &query); err != nil {
			return err
		}
		result, err := r.Retrieve(req.Context, query, k)
		if err != nil {
			return err
		}
		data, err := json.Marshal(result)
		if err != nil {
			return calque.WrapErr(req.Context, err, "encode result").Tag(slog.Int("k", k))
		}
		return calque.Write(res, data)
	})
}

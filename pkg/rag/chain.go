// Package rag answers questions about the indexed movies.
//
// A Chain runs four stages in a fixed order: it retrieves the nearest
// documents, assembles them into a prompt, asks the language model and
// extracts the answer and its sources. Any stage failure ends the call in
// StateFailed with the error kind of that stage:
//
//	chain := rag.NewChain(retriever, assembler, client, rag.WithModel("gpt-4o-mini"))
//	ans, err := chain.Answer(ctx, "What's a good movie about an epic viking?")
//	switch {
//	case errors.Is(err, calque.ErrEmbeddingService):
//		// the query could not be embedded
//	case err == nil && ans.Unsourced:
//		// the model answered without citing anything
//	}
package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/ai"
	"github.com/calque-ai/movierag/pkg/middleware/ctrl"
	"github.com/calque-ai/movierag/pkg/middleware/logger"
	"github.com/calque-ai/movierag/pkg/middleware/observability"
	"github.com/calque-ai/movierag/pkg/middleware/prompt"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

// State is a step of the answer state machine.
type State int

const (
	StateRetrieving State = iota + 1
	StateAssembling
	StateCompleting
	StateExtracting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRetrieving:
		return "retrieving"
	case StateAssembling:
		return "assembling"
	case StateCompleting:
		return "completing"
	case StateExtracting:
		return "extracting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result is everything one call produced, successful or not.
type Result struct {
	State    State // StateDone or StateFailed
	FailedAt State // The stage that failed, zero on success
	Err      error

	Question  string
	Answer    *Answer
	Raw       string // Model output before extraction
	Prompt    string
	Documents []retrieval.Document // Documents included in the prompt
	Dropped   []retrieval.Document // Documents cut to fit the budget
	TraceID   string
}

// Config holds the chain settings.
type Config struct {
	K                 int
	Model             string
	Temperature       float64
	Retry             ctrl.RetryPolicy
	CompletionTimeout time.Duration

	Logger  *logger.Logger
	Tracer  observability.TracerProvider
	Metrics observability.MetricsProvider
}

// Option configures a Chain or a single Run.
type Option interface {
	Apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) Apply(c *Config) { f(c) }

// WithK sets the number of documents retrieved.
func WithK(k int) Option { return optionFunc(func(c *Config) { c.K = k }) }

// WithModel sets the completion model id. Empty uses the client default.
func WithModel(model string) Option { return optionFunc(func(c *Config) { c.Model = model }) }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return optionFunc(func(c *Config) { c.Temperature = t })
}

// WithRetry replaces the completion retry policy.
func WithRetry(policy ctrl.RetryPolicy) Option {
	return optionFunc(func(c *Config) { c.Retry = policy })
}

// WithCompletionTimeout bounds each completion attempt.
func WithCompletionTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.CompletionTimeout = d })
}

// WithLogger sends stage events to l.
func WithLogger(l *logger.Logger) Option { return optionFunc(func(c *Config) { c.Logger = l }) }

// WithTracer opens a span per stage.
func WithTracer(p observability.TracerProvider) Option {
	return optionFunc(func(c *Config) { c.Tracer = p })
}

// WithMetrics records stage timings and answer outcomes.
func WithMetrics(m observability.MetricsProvider) Option {
	return optionFunc(func(c *Config) { c.Metrics = m })
}

// Chain is the answer pipeline. It holds no per-call state and is safe
// for concurrent use.
type Chain struct {
	retriever *retrieval.Retriever
	assembler *prompt.Assembler
	completer ai.Completer
	config    Config
}

// NewChain creates a chain with k = retrieval.DefaultK, temperature 0 and
// one retry for transient completion errors.
func NewChain(retriever *retrieval.Retriever, assembler *prompt.Assembler, completer ai.Completer, opts ...Option) *Chain {
	cfg := Config{
		K:       retrieval.DefaultK,
		Retry:   ctrl.DefaultRetryPolicy(),
		Tracer:  observability.NoopTracerProvider{},
		Metrics: observability.NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt.Apply(&cfg)
	}
	return &Chain{retriever: retriever, assembler: assembler, completer: completer, config: cfg}
}

// Config returns the chain settings.
func (c *Chain) Config() Config { return c.config }

// Answer runs the chain and returns only the answer.
func (c *Chain) Answer(ctx context.Context, question string, opts ...Option) (*Answer, error) {
	res, err := c.Run(ctx, question, opts...)
	if err != nil {
		return nil, err
	}
	return res.Answer, nil
}

// Run answers question. opts override the chain settings for this call.
//
// Input: question text
// Output: *Result, never nil
// Behavior:
//   - retrieval errors keep their kind (ErrValidation, ErrEmbeddingService, ErrStoreUnavailable)
//   - a delimiter in a document fails assembly with ErrFormat
//   - completion errors are ErrCompletionService after the retry budget
//   - no stage runs after a failed one
func (c *Chain) Run(ctx context.Context, question string, opts ...Option) (*Result, error) {
	cfg := c.config
	for _, opt := range opts {
		opt.Apply(&cfg)
	}

	trace := observability.NewTrace(
		observability.WithTraceID(calque.TraceID(ctx)),
		observability.WithTraceLogger(cfg.Logger),
		observability.WithTracer(cfg.Tracer),
		observability.WithMetrics(cfg.Metrics),
	)
	ctx = trace.Context(ctx)

	r := &run{chain: c, cfg: cfg, trace: trace, res: &Result{Question: question, TraceID: trace.ID}}
	for _, step := range []struct {
		state State
		fn    func(context.Context) ([]logger.Attribute, error)
	}{
		{StateRetrieving, r.retrieve},
		{StateAssembling, r.assemble},
		{StateCompleting, r.complete},
		{StateExtracting, r.extract},
	} {
		r.res.State = step.state
		sctx, span := trace.Start(ctx, step.state.String())
		attrs, err := step.fn(sctx)
		span.End(err, attrs...)
		if err != nil {
			return r.fail(ctx, err)
		}
	}

	r.res.State = StateDone
	cfg.Metrics.Counter(ctx, observability.MetricAnswers, 1, map[string]string{"outcome": outcome(r.res.Answer)})
	return r.res, nil
}

// run is the state of one call.
type run struct {
	chain *Chain
	cfg   Config
	trace *observability.Trace
	res   *Result
	docs  []retrieval.Document
}

func (r *run) retrieve(ctx context.Context) ([]logger.Attribute, error) {
	result, err := r.chain.retriever.Retrieve(ctx, r.res.Question, r.cfg.K)
	if err != nil {
		return nil, err
	}
	r.docs = result.Documents()
	return []logger.Attribute{logger.Attr("k", r.cfg.K), logger.Attr("found", len(r.docs))}, nil
}

func (r *run) assemble(ctx context.Context) ([]logger.Attribute, error) {
	out, err := r.chain.assembler.Assemble(ctx, r.res.Question, r.docs)
	if err != nil {
		return nil, err
	}
	r.res.Prompt = out.Prompt
	r.res.Documents = out.Included
	r.res.Dropped = out.Dropped
	return []logger.Attribute{
		logger.Attr("included", len(out.Included)),
		logger.Attr("dropped", len(out.Dropped)),
		logger.Attr("prompt_chars", len(out.Prompt)),
	}, nil
}

func (r *run) complete(ctx context.Context) ([]logger.Attribute, error) {
	opts := ai.CompletionOptions{Model: r.cfg.Model, Temperature: r.cfg.Temperature}
	attempts := 0
	err := ctrl.Retry(ctx, r.cfg.Retry, func(ctx context.Context) error {
		attempts++
		return ctrl.WithTimeout(ctx, r.cfg.CompletionTimeout, func(ctx context.Context) error {
			out, err := r.chain.completer.Complete(ctx, r.res.Prompt, opts)
			if err != nil {
				return err
			}
			r.res.Raw = out
			return nil
		})
	})
	if err != nil {
		e := calque.WrapErr(ctx, err, "complete prompt").WithKind(calque.ErrCompletionService)
		if ai.IsAuth(err) {
			e = e.Tag(slog.Bool("auth", true))
		}
		return []logger.Attribute{logger.Attr("attempts", attempts)}, e
	}
	return []logger.Attribute{logger.Attr("attempts", attempts), logger.Attr("model", r.cfg.Model)}, nil
}

func (r *run) extract(ctx context.Context) ([]logger.Attribute, error) {
	ans := Extract(r.res.Raw)
	r.res.Answer = &ans
	if ans.Unsourced {
		calque.LogWarn(ctx, "answer has no SOURCE label", "question", r.res.Question)
	}
	return []logger.Attribute{
		logger.Attr("sources", len(ans.Sources)),
		logger.Attr("unsourced", ans.Unsourced),
		logger.Attr("declined", ans.Declined),
	}, nil
}

func (r *run) fail(ctx context.Context, err error) (*Result, error) {
	r.res.FailedAt = r.res.State
	r.res.State = StateFailed
	r.res.Err = err
	r.cfg.Metrics.Counter(ctx, observability.MetricAnswers, 1, map[string]string{"outcome": "failed"})

	if errors.Is(err, context.Canceled) {
		calque.LogDebug(ctx, "answer canceled", "stage", r.res.FailedAt.String())
	} else {
		calque.LogWarn(ctx, "answer failed", "stage", r.res.FailedAt.String(), "kind", observability.ErrorKind(err))
	}
	return r.res, err
}

func outcome(a *Answer) string {
	switch {
	case a == nil:
		return "failed"
	case a.Declined:
		return "declined"
	case a.Unsourced:
		return "unsourced"
	case strings.TrimSpace(a.Text) == "":
		return "empty"
	}
	return "sourced"
}

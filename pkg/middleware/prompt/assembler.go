// Package prompt renders retrieved documents and a question into a single
// bounded prompt.
//
// Each document is rendered as its content, a "Source:" line and the
// document delimiter. The rendered documents are substituted, in rank
// order, into a question template that carries the answering
// instructions and a set of worked examples.
//
// When the prompt would exceed the configured budget, documents are
// dropped from the end of the list until it fits:
//
//	a := prompt.NewAssembler(prompt.WithMaxChars(12000))
//	out, err := a.Assemble(ctx, question, docs)
//	if out.Truncated {
//		// out.Dropped holds the lowest ranked documents that did not fit
//	}
package prompt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
	"github.com/calque-ai/movierag/pkg/movie"
)

// Config bounds the assembled prompt. Zero means unbounded.
type Config struct {
	MaxChars  int
	MaxTokens int
	Examples  []Example
}

// Option configures an Assembler.
type Option interface {
	Apply(*Config)
}

type maxCharsOption int

func (o maxCharsOption) Apply(c *Config) { c.MaxChars = int(o) }

// WithMaxChars bounds the prompt length in characters.
func WithMaxChars(n int) Option { return maxCharsOption(n) }

type maxTokensOption int

func (o maxTokensOption) Apply(c *Config) { c.MaxTokens = int(o) }

// WithMaxTokens bounds the estimated prompt size in tokens.
func WithMaxTokens(n int) Option { return maxTokensOption(n) }

type examplesOption []Example

func (o examplesOption) Apply(c *Config) { c.Examples = o }

// WithExamples replaces the built-in worked examples.
func WithExamples(examples []Example) Option { return examplesOption(examples) }

// Assembled is the rendered prompt and what went into it.
type Assembled struct {
	Prompt    string
	Included  []retrieval.Document
	Dropped   []retrieval.Document
	Truncated bool
}

// Assembler renders prompts. It is safe for concurrent use.
type Assembler struct {
	config   Config
	document *template.Template
	question *template.Template
}

// NewAssembler creates an assembler with the built-in examples and no budget.
func NewAssembler(opts ...Option) *Assembler {
	cfg := Config{Examples: DefaultExamples()}
	for _, opt := range opts {
		opt.Apply(&cfg)
	}
	doc, question := parseTemplates(movie.Delimiter)
	return &Assembler{config: cfg, document: doc, question: question}
}

// Config returns the assembler settings.
func (a *Assembler) Config() Config { return a.config }

// Assemble renders question and docs into a prompt.
//
// Documents whose content contains the delimiter fail with
// calque.ErrFormat. If the prompt is over budget, the lowest ranked
// documents are dropped and the result is flagged Truncated. If it is
// over budget even without documents, the error is calque.ErrFormat.
func (a *Assembler) Assemble(ctx context.Context, question string, docs []retrieval.Document) (*Assembled, error) {
	rendered := make([]string, len(docs))
	for i, doc := range docs {
		if strings.Contains(doc.Content, movie.Delimiter) || strings.Contains(doc.Source, movie.Delimiter) {
			return nil, calque.NewErr(ctx, "document contains the delimiter").
				WithKind(calque.ErrFormat).
				Tag(slog.String("source", doc.Source))
		}
		var buf bytes.Buffer
		if err := a.document.Execute(&buf, doc); err != nil {
			return nil, calque.WrapErr(ctx, err, "render document").WithKind(calque.ErrFormat)
		}
		rendered[i] = buf.String()
	}

	// Each document only adds to the size, so the largest fitting prefix
	// is found by dropping from the end.
	for n := len(docs); n >= 0; n-- {
		prompt, err := a.render(question, rendered[:n])
		if err != nil {
			return nil, calque.WrapErr(ctx, err, "render prompt").WithKind(calque.ErrFormat)
		}
		if !a.fits(prompt) {
			continue
		}

		out := &Assembled{
			Prompt:    prompt,
			Included:  docs[:n],
			Dropped:   docs[n:],
			Truncated: n < len(docs),
		}
		if out.Truncated {
			calque.LogWarn(ctx, "prompt over budget, documents dropped",
				"dropped", len(out.Dropped),
				"included", n,
				"max_chars", a.config.MaxChars,
				"max_tokens", a.config.MaxTokens)
		}
		return out, nil
	}

	return nil, calque.NewErr(ctx, "prompt exceeds budget without any documents").
		WithKind(calque.ErrFormat).
		Tags(slog.Int("max_chars", a.config.MaxChars), slog.Int("max_tokens", a.config.MaxTokens))
}

func (a *Assembler) render(question string, summaries []string) (string, error) {
	var buf bytes.Buffer
	err := a.question.Execute(&buf, map[string]any{
		"Question":  question,
		"Summaries": strings.Join(summaries, ""),
		"Examples":  a.config.Examples,
	})
	if err != nil {
		return "", fmt.Errorf("execute question template: %w", err)
	}
	return buf.String(), nil
}

func (a *Assembler) fits(prompt string) bool {
	if a.config.MaxChars > 0 && utf8.RuneCountInString(prompt) > a.config.MaxChars {
		return false
	}
	if a.config.MaxTokens > 0 && EstimateTokens(prompt) > a.config.MaxTokens {
		return false
	}
	return true
}

// EstimateTokens approximates the token count of s as 1.3 tokens per word.
func EstimateTokens(s string) int {
	return int(math.Ceil(float64(len(strings.Fields(s))) * 1.3))
}

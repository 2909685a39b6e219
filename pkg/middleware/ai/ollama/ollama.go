// Package ollama implements the completion and embedding collaborators on
// top of a local or remote Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/calque-ai/movierag/pkg/middleware/ai"
	"github.com/calque-ai/movierag/pkg/middleware/ai/config"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

const providerName = "ollama"

// Client implements ai.Client for Ollama.
//
// Example:
//
//	client, _ := ollama.New("llama3.2")
//	text, err := client.Complete(ctx, prompt, ai.CompletionOptions{})
type Client struct {
	client *api.Client
	model  string
	config *Config
}

// Config holds Ollama-specific configuration.
type Config struct {
	// Optional. Ollama server host (defaults to OLLAMA_HOST or localhost:11434)
	Host string

	// Optional. Embedding model (defaults to nomic-embed-text)
	EmbeddingModel string

	// Optional. Maximum number of tokens in the response
	MaxTokens *int

	// Optional. How long the model stays loaded, e.g. "5m"
	KeepAlive string
}

// Option interface for functional options pattern
type Option interface {
	Apply(*Config)
}

type configOption struct{ config *Config }

func (o configOption) Apply(opts *Config) { config.Merge(opts, o.config) }

// WithConfig merges cfg over the defaults.
//
// Example:
//
//	client, _ := ollama.New("llama3.2", ollama.WithConfig(&ollama.Config{Host: "http://remote:11434"}))
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig uses the environment host and nomic-embed-text.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingModel: "nomic-embed-text",
		KeepAlive:      "5m",
	}
}

// New creates a client for model, defaulting to llama3.2.
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		model = "llama3.2"
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}

	var client *api.Client
	if cfg.Host == "" {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create client from environment: %w", err)
		}
	} else {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid host URL: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	return &Client{client: client, model: model, config: cfg}, nil
}

// Name returns "ollama".
func (o *Client) Name() string { return providerName }

// Complete runs a non-streaming generate call.
func (o *Client) Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	model := o.model
	if opts.Model != "" {
		model = opts.Model
	}

	stream := false
	req := &api.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: map[string]any{"temperature": opts.Temperature},
	}
	if o.config.MaxTokens != nil {
		req.Options["num_predict"] = *o.config.MaxTokens
	}
	if o.config.KeepAlive != "" {
		req.Options["keep_alive"] = o.config.KeepAlive
	}

	var out strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	return out.String(), nil
}

// Embed returns the embedding of text.
func (o *Client) Embed(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.config.EmbeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, ai.NewProviderError(providerName, 0, errors.New("no embedding returned"))
	}
	return retrieval.EmbeddingVector(resp.Embeddings[0]), nil
}

func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return ai.NewProviderError(providerName, statusErr.StatusCode, err)
	}
	var authErr api.AuthorizationError
	if errors.As(err, &authErr) {
		return ai.NewProviderError(providerName, authErr.StatusCode, err)
	}
	return ai.NewProviderError(providerName, 0, err)
}

// Package gemini implements the completion and embedding collaborators on
// top of Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/calque-ai/movierag/pkg/middleware/ai"
	"github.com/calque-ai/movierag/pkg/middleware/ai/config"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

const providerName = "gemini"

// Client implements ai.Client for Gemini.
//
// Example:
//
//	client, _ := gemini.New("gemini-2.0-flash")
type Client struct {
	client *genai.Client
	model  string
	config *Config
}

// Config holds Gemini-specific configuration.
type Config struct {
	// Required. API key for Google AI authentication
	APIKey string

	// Optional. Embedding model (defaults to text-embedding-004)
	EmbeddingModel string

	// Optional. Maximum number of tokens in the response
	MaxTokens *int

	// Optional. Overrides the API endpoint
	BaseURL string
}

// Option interface for functional options pattern
type Option interface {
	Apply(*Config)
}

type configOption struct{ config *Config }

func (o configOption) Apply(opts *Config) { config.Merge(opts, o.config) }

// WithConfig merges cfg over the defaults.
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig reads GOOGLE_API_KEY from the environment.
func DefaultConfig() *Config {
	return &Config{
		APIKey:         os.Getenv("GOOGLE_API_KEY"),
		EmbeddingModel: "text-embedding-004",
	}
}

// New creates a client for model.
//
// Requires GOOGLE_API_KEY environment variable or config.APIKey.
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY environment variable not set or provided in config")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{client: client, model: model, config: cfg}, nil
}

// Name returns "gemini".
func (g *Client) Name() string { return providerName }

// Complete generates a single candidate for prompt.
func (g *Client) Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	model := g.model
	if opts.Model != "" {
		model = opts.Model
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if g.config.MaxTokens != nil {
		genConfig.MaxOutputTokens = int32(*g.config.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", classify(err)
	}
	return resp.Text(), nil
}

// Embed returns the embedding of text.
func (g *Client) Embed(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.config.EmbeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ai.NewProviderError(providerName, 0, errors.New("no embedding returned"))
	}
	return retrieval.EmbeddingVector(resp.Embeddings[0].Values), nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ai.NewProviderError(providerName, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return ai.NewProviderError(providerName, apiErrPtr.Code, err)
	}
	return ai.NewProviderError(providerName, 0, err)
}

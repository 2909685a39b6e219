// Package openai implements the completion and embedding collaborators on
// top of the OpenAI API.
//
// The SDK's own retry loop is disabled; retries are decided by the caller
// from the classified ProviderError.
//
// Example usage:
//
//	client, err := openai.New("gpt-4o-mini", openai.WithConfig(&openai.Config{
//		EmbeddingModel: "text-embedding-3-small",
//	}))
//	if err != nil {
//		log.Fatal(err)
//	}
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/calque-ai/movierag/pkg/middleware/ai"
	"github.com/calque-ai/movierag/pkg/middleware/ai/config"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

const providerName = "openai"

// DefaultEmbeddingModel is used when Config.EmbeddingModel is empty.
const DefaultEmbeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)

// Client implements ai.Client for OpenAI.
type Client struct {
	client *openai.Client
	model  shared.ChatModel
	config *Config
}

// Config holds OpenAI-specific configuration.
type Config struct {
	// Required. API key for OpenAI authentication
	APIKey string

	// Optional. Base URL for the API (defaults to the official endpoint)
	BaseURL string

	// Optional. Organization ID for requests
	OrgID string

	// Optional. Embedding model id
	EmbeddingModel string

	// Optional. Maximum number of tokens in the response
	MaxTokens *int
}

// Option interface for functional options pattern
type Option interface {
	Apply(*Config)
}

type configOption struct {
	config *Config
}

func (o configOption) Apply(opts *Config) {
	config.Merge(opts, o.config)
}

// WithConfig merges cfg over the defaults; only non-zero fields override.
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig reads OPENAI_API_KEY from the environment.
func DefaultConfig() *Config {
	return &Config{
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel: DefaultEmbeddingModel,
	}
}

// New creates a client for model.
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set or provided in config")
	}

	clientOptions := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.OrgID != "" {
		clientOptions = append(clientOptions, option.WithOrganization(cfg.OrgID))
	}

	c := openai.NewClient(clientOptions...)
	return &Client{client: &c, model: shared.ChatModel(model), config: cfg}, nil
}

// Name returns "openai".
func (c *Client) Name() string { return providerName }

// Complete sends prompt as a single user message.
func (c *Client) Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	model := c.model
	if opts.Model != "" {
		model = shared.ChatModel(opts.Model)
	}

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(opts.Temperature),
	}
	if c.config.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*c.config.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", ai.NewProviderError(providerName, 0, errors.New("no response choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.config.EmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, ai.NewProviderError(providerName, 0, errors.New("no embedding returned"))
	}

	src := resp.Data[0].Embedding
	vec := make(retrieval.EmbeddingVector, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ai.NewProviderError(providerName, apiErr.StatusCode, err)
	}
	return ai.NewProviderError(providerName, 0, err)
}

// Package config reads the movierag settings from a .env file and the
// environment and builds the pipeline components from them.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"

	"github.com/calque-ai/movierag/pkg/helpers"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
	"github.com/calque-ai/movierag/pkg/movie"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePgvector = "pgvector"
	StoreQdrant   = "qdrant"
	StoreWeaviate = "weaviate"
)

// Cache modes.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds every setting of the CLI and the server.
type Config struct {
	LLM   ModelConfig `yaml:"llm" json:"llm"`
	Embed ModelConfig `yaml:"embed" json:"embed"`
	Store StoreConfig `yaml:"store" json:"store"`
	RAG   RAGConfig   `yaml:"rag" json:"rag"`
	Cache CacheConfig `yaml:"cache" json:"cache"`

	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	HTTPAddr     string `yaml:"http_addr" json:"http_addr"`

	Keys Keys `yaml:"-" json:"-"`
}

// ModelConfig selects a provider and model.
type ModelConfig struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
}

// StoreConfig selects the vector store.
type StoreConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	URL        string `yaml:"url" json:"url"` // Connection string, server URL or badger directory
	Collection string `yaml:"collection" json:"collection"`
	Dimension  int    `yaml:"dimension" json:"dimension"`
}

// RAGConfig tunes the answer chain.
type RAGConfig struct {
	TopK            int     `yaml:"top_k" json:"top_k"`
	Temperature     float64 `yaml:"temperature" json:"temperature"`
	MaxPromptChars  int     `yaml:"max_prompt_chars" json:"max_prompt_chars"`
	MaxPromptTokens int     `yaml:"max_prompt_tokens" json:"max_prompt_tokens"`
	SourceBaseURL   string  `yaml:"source_base_url" json:"source_base_url"`
	ExamplesFile    string  `yaml:"examples_file" json:"examples_file"`
}

// CacheConfig selects the embedding and response cache.
type CacheConfig struct {
	Mode      string        `yaml:"mode" json:"mode"`
	RedisAddr string        `yaml:"redis_addr" json:"redis_addr"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// IngestConfig bounds ingestion.
type IngestConfig struct {
	Workers  int `yaml:"workers" json:"workers"`
	EmbedRPS int `yaml:"embed_rps" json:"embed_rps"`
}

// LoggingConfig selects the log output.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Keys holds provider credentials. They are never serialized.
type Keys struct {
	OpenAI     string
	Google     string
	OllamaHost string
	Qdrant     string
	Weaviate   string
}

// DefaultConfig runs fully offline: mock models and an in-memory store.
func DefaultConfig() *Config {
	return &Config{
		LLM:   ModelConfig{Provider: ProviderMock},
		Embed: ModelConfig{Provider: ProviderMock},
		Store: StoreConfig{Backend: StoreMemory, Collection: "movies"},
		RAG: RAGConfig{
			TopK:          retrieval.DefaultK,
			SourceBaseURL: movie.DefaultBaseURL,
		},
		Cache:    CacheConfig{Mode: CacheNone, RedisAddr: "localhost:6379", TTL: 24 * time.Hour},
		Ingest:   IngestConfig{Workers: 4},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		HTTPAddr: ":8080",
	}
}

// Load reads envFiles (missing files are ignored; none means ".env"),
// then the environment, and validates the result. Variables already set
// in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles copies the variables of the dotenv files into the
// environment without overriding variables that are already set.
func LoadEnvFiles(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromEnv overrides c with the MOVIERAG_* variables and the provider
// credentials.
func (c *Config) LoadFromEnv() {
	c.LLM.Provider = helpers.GetStringFromEnv("MOVIERAG_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = helpers.GetStringFromEnv("MOVIERAG_CHAT_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = helpers.GetIntFromEnv("MOVIERAG_MAX_ANSWER_TOKENS", c.LLM.MaxTokens)
	c.Embed.Provider = helpers.GetStringFromEnv("MOVIERAG_EMBED_PROVIDER", c.Embed.Provider)
	c.Embed.Model = helpers.GetStringFromEnv("MOVIERAG_EMBED_MODEL", c.Embed.Model)

	c.Store.Backend = helpers.GetStringFromEnv("MOVIERAG_STORE", c.Store.Backend)
	c.Store.URL = helpers.GetStringFromEnv("MOVIERAG_STORE_URL", c.Store.URL)
	c.Store.Collection = helpers.GetStringFromEnv("MOVIERAG_COLLECTION", c.Store.Collection)
	c.Store.Dimension = helpers.GetIntFromEnv("MOVIERAG_DIMENSION", c.Store.Dimension)

	c.RAG.TopK = helpers.GetIntFromEnv("MOVIERAG_TOP_K", c.RAG.TopK)
	c.RAG.Temperature = helpers.GetFloatFromEnv("MOVIERAG_TEMPERATURE", c.RAG.Temperature)
	c.RAG.MaxPromptChars = helpers.GetIntFromEnv("MOVIERAG_MAX_PROMPT_CHARS", c.RAG.MaxPromptChars)
	c.RAG.MaxPromptTokens = helpers.GetIntFromEnv("MOVIERAG_MAX_PROMPT_TOKENS", c.RAG.MaxPromptTokens)
	c.RAG.SourceBaseURL = helpers.GetStringFromEnv("MOVIERAG_SOURCE_BASE_URL", c.RAG.SourceBaseURL)
	c.RAG.ExamplesFile = helpers.GetStringFromEnv("MOVIERAG_EXAMPLES_FILE", c.RAG.ExamplesFile)

	c.Cache.Mode = helpers.GetStringFromEnv("MOVIERAG_CACHE", c.Cache.Mode)
	c.Cache.RedisAddr = helpers.GetStringFromEnv("MOVIERAG_REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.TTL = helpers.GetDurationFromEnv("MOVIERAG_CACHE_TTL", c.Cache.TTL)

	c.Ingest.Workers = helpers.GetIntFromEnv("MOVIERAG_INGEST_WORKERS", c.Ingest.Workers)
	c.Ingest.EmbedRPS = helpers.GetIntFromEnv("MOVIERAG_EMBED_RPS", c.Ingest.EmbedRPS)

	c.Logging.Level = helpers.GetStringFromEnv("MOVIERAG_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = helpers.GetStringFromEnv("MOVIERAG_LOG_FORMAT", c.Logging.Format)

	c.OTLPEndpoint = helpers.GetStringFromEnv("MOVIERAG_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.HTTPAddr = helpers.GetStringFromEnv("MOVIERAG_HTTP_ADDR", c.HTTPAddr)

	c.Keys = Keys{
		OpenAI:     helpers.GetStringFromEnv("OPENAI_API_KEY", c.Keys.OpenAI),
		Google:     helpers.GetStringFromEnv("GOOGLE_API_KEY", c.Keys.Google),
		OllamaHost: helpers.GetStringFromEnv("OLLAMA_HOST", c.Keys.OllamaHost),
		Qdrant:     helpers.GetStringFromEnv("QDRANT_API_KEY", c.Keys.Qdrant),
		Weaviate:   helpers.GetStringFromEnv("WEAVIATE_API_KEY", c.Keys.Weaviate),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	providers := []string{ProviderOpenAI, ProviderOllama, ProviderGemini, ProviderMock}

	if !slices.Contains(providers, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if !slices.Contains(providers, c.Embed.Provider) {
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embed.Provider))
	}
	if !slices.Contains([]string{StoreMemory, StoreBadger, StorePgvector, StoreQdrant, StoreWeaviate}, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store.Backend))
	}
	if slices.Contains([]string{StorePgvector, StoreQdrant, StoreWeaviate}, c.Store.Backend) && c.Store.URL == "" {
		errs = append(errs, fmt.Errorf("store %s needs MOVIERAG_STORE_URL", c.Store.Backend))
	}
	if !slices.Contains([]string{CacheNone, CacheMemory, CacheRedis}, c.Cache.Mode) {
		errs = append(errs, fmt.Errorf("unknown cache mode %q", c.Cache.Mode))
	}
	if c.RAG.TopK < 1 {
		errs = append(errs, fmt.Errorf("top k must be at least 1, got %d", c.RAG.TopK))
	}
	if c.RAG.Temperature < 0 || c.RAG.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f is outside [0, 2]", c.RAG.Temperature))
	}
	if c.RAG.MaxPromptChars < 0 || c.RAG.MaxPromptTokens < 0 || c.Store.Dimension < 0 || c.LLM.MaxTokens < 0 {
		errs = append(errs, errors.New("budgets and dimension cannot be negative"))
	}
	return errors.Join(errs...)
}

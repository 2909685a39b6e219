package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/calque-ai/movierag/pkg/helpers"
	"github.com/calque-ai/movierag/pkg/ingest"
	"github.com/calque-ai/movierag/pkg/middleware/ai"
	"github.com/calque-ai/movierag/pkg/middleware/ai/gemini"
	"github.com/calque-ai/movierag/pkg/middleware/ai/ollama"
	"github.com/calque-ai/movierag/pkg/middleware/ai/openai"
	"github.com/calque-ai/movierag/pkg/middleware/cache"
	"github.com/calque-ai/movierag/pkg/middleware/logger"
	"github.com/calque-ai/movierag/pkg/middleware/observability"
	"github.com/calque-ai/movierag/pkg/middleware/prompt"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval/badger"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval/memory"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval/pgvector"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval/qdrant"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval/weaviate"
	"github.com/calque-ai/movierag/pkg/rag"
)

// Default chat models per provider.
var defaultChatModels = map[string]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderGemini: "gemini-2.0-flash",
	ProviderOllama: "llama3.2",
}

// App is the wired pipeline.
type App struct {
	Config *Config

	Log     *slog.Logger
	Logger  *logger.Logger
	Metrics *observability.PrometheusProvider
	Tracer  observability.TracerProvider

	Completer ai.Completer
	Embedder  retrieval.EmbeddingProvider
	Store     retrieval.VectorStore
	Cache     cache.Store // nil when caching is off

	Retriever *retrieval.Retriever
	Assembler *prompt.Assembler
	Chain     *rag.Chain
	Ingester  *ingest.Ingester

	closers []func(context.Context) error
}

// Build creates every component named by cfg. Logs go to w.
func Build(ctx context.Context, cfg *Config, w io.Writer) (_ *App, err error) {
	app := &App{Config: cfg, Metrics: observability.NewPrometheusProvider(), Tracer: observability.NoopTracerProvider{}}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	sl, adapter, err := logger.Setup(w, cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	app.Log = sl
	app.Logger = logger.New(adapter)

	if cfg.OTLPEndpoint != "" {
		tp, err := observability.NewOTLPTracerProvider(ctx, "movierag", cfg.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		app.Tracer = tp
		app.closers = append(app.closers, tp.Shutdown)
	}

	completer, err := NewClient(cfg.LLM, cfg.Keys, "")
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	app.Completer = completer

	embedClient, err := NewClient(ModelConfig{Provider: cfg.Embed.Provider, Model: cfg.LLM.Model}, cfg.Keys, cfg.Embed.Model)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	app.Embedder = embedClient

	if app.Cache, err = NewCacheStore(ctx, cfg.Cache); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if app.Cache != nil {
		cacheStore := app.Cache
		app.closers = append(app.closers, func(context.Context) error { return cacheStore.Close() })
		app.Embedder = cache.NewCachedEmbedder(embedClient, app.Cache, embedClient.Name()+"/"+cfg.Embed.Model, cfg.Cache.TTL)
	}

	if app.Store, err = NewStore(ctx, cfg.Store, cfg.Keys); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	store := app.Store
	app.closers = append(app.closers, func(context.Context) error { return store.Close() })

	examples := prompt.DefaultExamples()
	if cfg.RAG.ExamplesFile != "" {
		if examples, err = prompt.LoadExamples(cfg.RAG.ExamplesFile); err != nil {
			return nil, err
		}
	}

	app.Retriever = retrieval.NewRetriever(app.Embedder, app.Store, retrieval.WithTimeouts(30*time.Second, 30*time.Second))
	app.Assembler = prompt.NewAssembler(
		prompt.WithMaxChars(cfg.RAG.MaxPromptChars),
		prompt.WithMaxTokens(cfg.RAG.MaxPromptTokens),
		prompt.WithExamples(examples),
	)
	app.Chain = rag.NewChain(app.Retriever, app.Assembler, app.Completer,
		rag.WithK(cfg.RAG.TopK),
		rag.WithModel(cfg.LLM.Model),
		rag.WithTemperature(cfg.RAG.Temperature),
		rag.WithCompletionTimeout(2*time.Minute),
		rag.WithLogger(app.Logger),
		rag.WithTracer(app.Tracer),
		rag.WithMetrics(app.Metrics),
	)
	app.Ingester = ingest.New(app.Embedder, app.Store,
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithRateLimit(cfg.Ingest.EmbedRPS, time.Second),
		ingest.WithBaseURL(cfg.RAG.SourceBaseURL),
	)
	return app, nil
}

// HealthChecks registers the store and, when enabled, the cache.
func (a *App) HealthChecks() *observability.HealthCheckRegistry {
	r := observability.NewHealthCheckRegistry(5 * time.Second)
	r.Register(observability.FuncHealthCheck{CheckName: "store", Fn: a.Store.Health})
	if a.Cache != nil {
		r.Register(observability.FuncHealthCheck{CheckName: "cache", Fn: func(ctx context.Context) error {
			_, err := a.Cache.Exists(ctx, "health")
			return err
		}})
	}
	return r
}

// Close releases everything Build opened, in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewClient creates a model client. embedModel overrides the provider's
// default embedding model when set.
func NewClient(mc ModelConfig, keys Keys, embedModel string) (ai.Client, error) {
	model := mc.Model
	if model == "" {
		model = defaultChatModels[mc.Provider]
	}

	var maxTokens *int
	if mc.MaxTokens > 0 {
		maxTokens = helpers.PtrOf(mc.MaxTokens)
	}

	switch mc.Provider {
	case ProviderOpenAI:
		return openai.New(model, openai.WithConfig(&openai.Config{APIKey: keys.OpenAI, EmbeddingModel: embedModel, MaxTokens: maxTokens}))
	case ProviderGemini:
		return gemini.New(model, gemini.WithConfig(&gemini.Config{APIKey: keys.Google, EmbeddingModel: embedModel, MaxTokens: maxTokens}))
	case ProviderOllama:
		return ollama.New(model, ollama.WithConfig(&ollama.Config{Host: keys.OllamaHost, EmbeddingModel: embedModel, MaxTokens: maxTokens}))
	case ProviderMock:
		return ai.NewMockClient(), nil
	}
	return nil, fmt.Errorf("unknown provider %q", mc.Provider)
}

// NewStore opens the configured vector store.
func NewStore(ctx context.Context, sc StoreConfig, keys Keys) (retrieval.VectorStore, error) {
	switch sc.Backend {
	case StoreMemory:
		return memory.New(), nil
	case StoreBadger:
		if sc.URL == "" {
			return badger.NewInMemoryStore()
		}
		return badger.NewStore(sc.URL)
	case StorePgvector:
		return pgvector.New(ctx, &pgvector.Config{
			ConnectionString: sc.URL,
			TableName:        sc.Collection,
			VectorDimension:  sc.Dimension,
		})
	case StoreQdrant:
		return qdrant.New(&qdrant.Config{URL: sc.URL, CollectionName: sc.Collection, APIKey: keys.Qdrant})
	case StoreWeaviate:
		return weaviate.New(&weaviate.Config{URL: sc.URL, APIKey: keys.Weaviate})
	}
	return nil, fmt.Errorf("unknown store %q", sc.Backend)
}

// NewCacheStore opens the cache backend, or returns nil when it is off.
func NewCacheStore(ctx context.Context, cc CacheConfig) (cache.Store, error) {
	switch cc.Mode {
	case "", CacheNone:
		return nil, nil
	case CacheMemory:
		return cache.NewInMemoryStore(), nil
	case CacheRedis:
		return cache.DialRedis(ctx, cc.RedisAddr, "")
	}
	return nil, fmt.Errorf("unknown cache mode %q", cc.Mode)
}

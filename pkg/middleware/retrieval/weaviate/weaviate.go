// Package weaviate stores index entries as objects of a Weaviate class
// with self-provided vectors.
//
// Object ids are UUIDv5 values derived from the entry key. The class is
// created with the cosine distance metric; matches carry Weaviate's
// reported distance. Ties are broken by key order.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

const (
	propContent  = "content"
	propSource   = "source"
	propKey      = "key"
	propMetadata = "metadata"
	batchSize    = 100
)

// Client implements retrieval.VectorStore on a Weaviate class.
type Client struct {
	client    *weaviate.Client
	className string

	mu        sync.Mutex
	ensured   bool
	dimension int
}

// Config holds Weaviate client configuration.
type Config struct {
	URL       string // Weaviate instance URL, e.g. "http://localhost:8080"
	ClassName string // Class holding the documents. Defaults to "Movie".
	APIKey    string // Optional API key for authentication
}

// New creates a Weaviate client. The class is created on first upsert.
//
// Example:
//
//	client, err := weaviate.New(&weaviate.Config{URL: "http://localhost:8080"})
func New(config *Config) (*Client, error) {
	cfg, err := clientConfig(config)
	if err != nil {
		return nil, err
	}
	wc, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &Client{client: wc, className: config.ClassName}, nil
}

func clientConfig(config *Config) (weaviate.Config, error) {
	if config == nil || config.URL == "" {
		return weaviate.Config{}, fmt.Errorf("weaviate URL is required")
	}
	if config.ClassName == "" {
		config.ClassName = "Movie"
	}

	u, err := url.Parse(config.URL)
	if err != nil || u.Host == "" {
		return weaviate.Config{}, fmt.Errorf("invalid weaviate URL %q", config.URL)
	}

	cfg := weaviate.Config{Host: u.Host, Scheme: u.Scheme}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: config.APIKey}
	}
	return cfg, nil
}

// Upsert imports entries in batches; an existing id is overwritten.
func (c *Client) Upsert(ctx context.Context, entries []retrieval.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	dim, err := retrieval.CheckDimension(entries, c.dimension)
	c.mu.Unlock()
	if err != nil {
		return calque.WrapErr(ctx, err, "weaviate upsert").WithKind(calque.ErrValidation)
	}
	if err := c.ensureClass(ctx); err != nil {
		return err
	}

	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))

		objects := make([]*models.Object, 0, end-i)
		for _, e := range entries[i:end] {
			props, err := Properties(e)
			if err != nil {
				return err
			}
			objects = append(objects, &models.Object{
				Class:      c.className,
				ID:         ObjectID(e.Key),
				Properties: props,
				Vector:     models.C11yVector(e.Vector),
			})
		}

		resp, err := c.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return fmt.Errorf("weaviate batch %d-%d: %w", i, end-1, err)
		}
		for _, r := range resp {
			if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
				return fmt.Errorf("weaviate batch object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
			}
		}
	}

	c.mu.Lock()
	c.dimension = dim
	c.mu.Unlock()
	return nil
}

// Query runs a nearVector search.
func (c *Client) Query(ctx context.Context, vector retrieval.EmbeddingVector, k int) ([]retrieval.Match, error) {
	exists, err := c.classExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []retrieval.Match{}, nil
	}

	nearVector := c.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	resp, err := c.client.GraphQL().Get().
		WithClassName(c.className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(
			graphql.Field{Name: propContent},
			graphql.Field{Name: propSource},
			graphql.Field{Name: propKey},
			graphql.Field{Name: propMetadata},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query on %s: %w", c.className, err)
	}

	matches, err := ParseMatches(resp, c.className)
	if err != nil {
		return nil, err
	}
	return retrieval.TopKByKey(matches, k), nil
}

// Stats counts objects with an aggregate query. Dimension is known once
// this client has upserted.
func (c *Client) Stats(ctx context.Context) (retrieval.Stats, error) {
	exists, err := c.classExists(ctx)
	if err != nil || !exists {
		return retrieval.Stats{}, err
	}

	resp, err := c.client.GraphQL().Aggregate().
		WithClassName(c.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return retrieval.Stats{}, fmt.Errorf("weaviate aggregate on %s: %w", c.className, err)
	}
	count, err := ParseCount(resp, c.className)
	if err != nil {
		return retrieval.Stats{}, err
	}

	c.mu.Lock()
	dim := c.dimension
	c.mu.Unlock()
	return retrieval.Stats{Count: count, Dimension: dim}, nil
}

// Exists checks each key's derived object id.
func (c *Client) Exists(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	exists, err := c.classExists(ctx)
	if err != nil || !exists {
		return found, err
	}

	for _, k := range keys {
		ok, err := c.client.Data().Checker().
			WithClassName(c.className).
			WithID(string(ObjectID(k))).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("weaviate exists %s: %w", k, err)
		}
		if ok {
			found[k] = true
		}
	}
	return found, nil
}

// Health checks that the instance is ready.
func (c *Client) Health(ctx context.Context) error {
	ready, err := c.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate health check: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

// Close is a no-op; the client holds no persistent connection.
func (c *Client) Close() error { return nil }

func (c *Client) classExists(ctx context.Context) (bool, error) {
	c.mu.Lock()
	ensured := c.ensured
	c.mu.Unlock()
	if ensured {
		return true, nil
	}

	exists, err := c.client.Schema().ClassExistenceChecker().WithClassName(c.className).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("weaviate class check %s: %w", c.className, err)
	}
	if exists {
		c.mu.Lock()
		c.ensured = true
		c.mu.Unlock()
	}
	return exists, nil
}

func (c *Client) ensureClass(ctx context.Context) error {
	exists, err := c.classExists(ctx)
	if err != nil || exists {
		return err
	}

	err = c.client.Schema().ClassCreator().WithClass(ClassSchema(c.className)).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create class %s: %w", c.className, err)
	}

	c.mu.Lock()
	c.ensured = true
	c.mu.Unlock()
	return nil
}

// ClassSchema describes the document class: text properties, no
// vectorizer, cosine distance.
func ClassSchema(className string) *models.Class {
	text := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text"}}
	}
	return &models.Class{
		Class:             className,
		Vectorizer:        "none",
		VectorIndexConfig: map[string]any{"distance": "cosine"},
		Properties:        []*models.Property{text(propContent), text(propSource), text(propKey), text(propMetadata)},
	}
}

// ObjectID derives the stable object id of a key.
func ObjectID(key string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String())
}

// Properties converts an entry to object properties. Metadata is kept as
// a JSON string so arbitrary keys need no schema change.
func Properties(e retrieval.IndexEntry) (map[string]any, error) {
	props := map[string]any{
		propContent: e.Document.Content,
		propSource:  e.Document.Source,
		propKey:     e.Key,
	}
	if len(e.Document.Metadata) > 0 {
		data, err := json.Marshal(e.Document.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata for %s: %w", e.Key, err)
		}
		props[propMetadata] = string(data)
	}
	return props, nil
}

// ParseMatches reads a Get response into matches.
func ParseMatches(resp *models.GraphQLResponse, className string) ([]retrieval.Match, error) {
	if resp == nil {
		return []retrieval.Match{}, nil
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate: %s", resp.Errors[0].Message)
	}

	data, _ := resp.Data["Get"].(map[string]any)
	items, _ := data[className].([]any)

	matches := make([]retrieval.Match, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var m retrieval.Match
		m.Document.Content, _ = obj[propContent].(string)
		m.Document.Source, _ = obj[propSource].(string)
		m.Key, _ = obj[propKey].(string)
		if m.Key == "" {
			m.Key = m.Document.Source
		}
		if raw, _ := obj[propMetadata].(string); raw != "" {
			if err := json.Unmarshal([]byte(raw), &m.Document.Metadata); err != nil {
				return nil, fmt.Errorf("weaviate metadata for %s: %w", m.Key, err)
			}
		}
		additional, _ := obj["_additional"].(map[string]any)
		m.Distance, _ = additional["distance"].(float64)
		matches = append(matches, m)
	}
	return matches, nil
}

// ParseCount reads meta.count from an Aggregate response.
func ParseCount(resp *models.GraphQLResponse, className string) (int, error) {
	if resp == nil {
		return 0, nil
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("weaviate: %s", resp.Errors[0].Message)
	}
	data, _ := resp.Data["Aggregate"].(map[string]any)
	groups, _ := data[className].([]any)
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]any)
	meta, _ := group["meta"].(map[string]any)
	count, _ := meta["count"].(float64)
	return int(count), nil
}

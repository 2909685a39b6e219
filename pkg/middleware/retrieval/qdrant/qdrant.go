// Package qdrant stores index entries in a Qdrant collection over gRPC.
//
// Point ids are UUIDv5 values derived from the entry key, so re-upserting a
// key replaces its point. Qdrant reports cosine similarity; matches carry
// 1 - score as the distance. Ties are broken by key order.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

const (
	payloadContent = "content"
	payloadSource  = "source"
	payloadKey     = "key"
	batchSize      = 100
)

// Client implements retrieval.VectorStore on a Qdrant collection.
type Client struct {
	client         *qd.Client
	collectionName string

	mu        sync.Mutex
	ensured   bool
	dimension int
}

// Config holds Qdrant client configuration.
type Config struct {
	// Qdrant gRPC URL, e.g. "http://localhost:6334". Port defaults to 6334.
	URL string

	// Collection name for storing documents. Defaults to "movies".
	CollectionName string

	// Optional API key for authentication
	APIKey string
}

// New creates a Qdrant client. The collection is created on first upsert
// with the dimension of the first vector.
//
// Example:
//
//	client, err := qdrant.New(&qdrant.Config{
//	    URL:            "http://localhost:6334",
//	    CollectionName: "movies",
//	})
func New(config *Config) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if config.CollectionName == "" {
		config.CollectionName = "movies"
	}

	parsedURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URL: %w", err)
	}

	port := 6334
	if parsedURL.Port() != "" {
		p, err := strconv.Atoi(parsedURL.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	qdrantClient, err := qd.NewClient(&qd.Config{
		Host:   parsedURL.Hostname(),
		Port:   port,
		APIKey: config.APIKey,
		UseTLS: parsedURL.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{client: qdrantClient, collectionName: config.CollectionName}, nil
}

// Upsert writes entries in batches and waits for each batch to be applied.
func (c *Client) Upsert(ctx context.Context, entries []retrieval.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	dim, err := retrieval.CheckDimension(entries, c.dimension)
	c.mu.Unlock()
	if err != nil {
		return calque.WrapErr(ctx, err, "qdrant upsert").WithKind(calque.ErrValidation)
	}
	if err := c.ensureCollection(ctx, dim); err != nil {
		return err
	}

	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))

		points := make([]*qd.PointStruct, 0, end-i)
		for _, e := range entries[i:end] {
			points = append(points, &qd.PointStruct{
				Id:      PointID(e.Key),
				Vectors: qd.NewVectors(e.Vector...),
				Payload: BuildPayload(e),
			})
		}

		_, err := c.client.Upsert(ctx, &qd.UpsertPoints{
			CollectionName: c.collectionName,
			Points:         points,
			Wait:           qd.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to upsert points %d-%d to collection %s: %w", i, end-1, c.collectionName, err)
		}
	}
	return nil
}

// Query runs a nearest-neighbour query on the collection.
func (c *Client) Query(ctx context.Context, vector retrieval.EmbeddingVector, k int) ([]retrieval.Match, error) {
	exists, err := c.collectionExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []retrieval.Match{}, nil
	}

	points, err := c.client.Query(ctx, &qd.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qd.NewQuery(vector...),
		Limit:          qd.PtrOf(uint64(k)),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query on %s: %w", c.collectionName, err)
	}

	matches := make([]retrieval.Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, MatchFromPoint(p.GetPayload(), p.GetScore()))
	}
	return retrieval.TopKByKey(matches, k), nil
}

// Stats reports the exact point count and the collection's vector size.
func (c *Client) Stats(ctx context.Context) (retrieval.Stats, error) {
	exists, err := c.collectionExists(ctx)
	if err != nil || !exists {
		return retrieval.Stats{}, err
	}

	count, err := c.client.Count(ctx, &qd.CountPoints{
		CollectionName: c.collectionName,
		Exact:          qd.PtrOf(true),
	})
	if err != nil {
		return retrieval.Stats{}, fmt.Errorf("qdrant count on %s: %w", c.collectionName, err)
	}

	info, err := c.client.GetCollectionInfo(ctx, c.collectionName)
	if err != nil {
		return retrieval.Stats{}, fmt.Errorf("qdrant collection info %s: %w", c.collectionName, err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()

	return retrieval.Stats{Count: int(count), Dimension: int(size)}, nil
}

// Exists fetches points by their derived ids.
func (c *Client) Exists(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return found, nil
	}
	exists, err := c.collectionExists(ctx)
	if err != nil || !exists {
		return found, err
	}

	ids := make([]*qd.PointId, len(keys))
	for i, k := range keys {
		ids[i] = PointID(k)
	}
	points, err := c.client.Get(ctx, &qd.GetPoints{
		CollectionName: c.collectionName,
		Ids:            ids,
		WithPayload:    qd.NewWithPayloadInclude(payloadKey),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant get on %s: %w", c.collectionName, err)
	}
	for _, p := range points {
		if key := p.GetPayload()[payloadKey].GetStringValue(); key != "" {
			found[key] = true
		}
	}
	return found, nil
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close qdrant: %w", err)
	}
	return nil
}

func (c *Client) collectionExists(ctx context.Context) (bool, error) {
	c.mu.Lock()
	ensured := c.ensured
	c.mu.Unlock()
	if ensured {
		return true, nil
	}

	exists, err := c.client.CollectionExists(ctx, c.collectionName)
	if err != nil {
		return false, fmt.Errorf("qdrant collection check %s: %w", c.collectionName, err)
	}
	return exists, nil
}

func (c *Client) ensureCollection(ctx context.Context, dim int) error {
	exists, err := c.collectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		err = c.client.CreateCollection(ctx, &qd.CreateCollection{
			CollectionName: c.collectionName,
			VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
				Size:     uint64(dim),
				Distance: qd.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", c.collectionName, err)
		}
	}

	c.mu.Lock()
	c.ensured = true
	c.dimension = dim
	c.mu.Unlock()
	return nil
}

// PointID derives the stable point id of a key.
func PointID(key string) *qd.PointId {
	return qd.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String())
}

// BuildPayload converts an entry to a Qdrant payload. Metadata keys that
// collide with the reserved content, source and key fields are dropped.
func BuildPayload(e retrieval.IndexEntry) map[string]*qd.Value {
	payload := map[string]*qd.Value{
		payloadContent: qd.NewValueString(e.Document.Content),
		payloadSource:  qd.NewValueString(e.Document.Source),
		payloadKey:     qd.NewValueString(e.Key),
	}

	for key, value := range e.Document.Metadata {
		if _, reserved := payload[key]; reserved {
			continue
		}
		switch v := value.(type) {
		case string:
			payload[key] = qd.NewValueString(v)
		case int:
			payload[key] = qd.NewValueInt(int64(v))
		case int64:
			payload[key] = qd.NewValueInt(v)
		case float64:
			payload[key] = qd.NewValueDouble(v)
		case bool:
			payload[key] = qd.NewValueBool(v)
		default:
			payload[key] = qd.NewValueString(fmt.Sprintf("%v", v))
		}
	}
	return payload
}

// MatchFromPoint rebuilds a match from a scored point's payload.
func MatchFromPoint(payload map[string]*qd.Value, score float32) retrieval.Match {
	m := retrieval.Match{Distance: 1 - float64(score)}
	meta := make(map[string]any)

	for key, value := range payload {
		switch key {
		case payloadContent:
			m.Document.Content = value.GetStringValue()
			continue
		case payloadSource:
			m.Document.Source = value.GetStringValue()
			continue
		case payloadKey:
			m.Key = value.GetStringValue()
			continue
		}

		switch kind := value.GetKind().(type) {
		case *qd.Value_StringValue:
			meta[key] = kind.StringValue
		case *qd.Value_IntegerValue:
			meta[key] = kind.IntegerValue
		case *qd.Value_DoubleValue:
			meta[key] = kind.DoubleValue
		case *qd.Value_BoolValue:
			meta[key] = kind.BoolValue
		}
	}

	if m.Key == "" {
		m.Key = m.Document.Source
	}
	if len(meta) > 0 {
		m.Document.Metadata = meta
	}
	return m
}

package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

// CachedEmbedder memoizes an embedding provider. Keys are the hash of the
// model id and the text, so changing models never serves stale vectors.
type CachedEmbedder struct {
	next  retrieval.EmbeddingProvider
	store Store
	model string
	ttl   time.Duration
}

// NewCachedEmbedder wraps next.
func NewCachedEmbedder(next retrieval.EmbeddingProvider, store Store, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, store: store, model: model, ttl: ttl}
}

// Embed returns the cached vector or computes and stores it. Store
// failures are logged and bypassed.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	key := "embed:" + HashKey(c.model, text)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		calque.LogWarn(ctx, "embedding cache read failed", "error", err)
	} else if data != nil {
		if vec, err := decodeVector(data); err == nil {
			return vec, nil
		}
		calque.LogWarn(ctx, "embedding cache entry corrupt, recomputing", "key", key)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, encodeVector(vec), c.ttl); err != nil {
		calque.LogWarn(ctx, "embedding cache write failed", "error", err)
	}
	return vec, nil
}

func encodeVector(v retrieval.EmbeddingVector) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) (retrieval.EmbeddingVector, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector payload of %d bytes", len(b))
	}
	v := make(retrieval.EmbeddingVector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// Package cache stores embeddings and answers with a TTL, in process or
// in Redis.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/calque-ai/movierag/pkg/calque"
)

// Store is a TTL key-value backend. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Memory caches handler responses in a Store.
type Memory struct {
	store   Store
	onError func(error)
}

// NewCache creates a cache over an in-memory store.
func NewCache() *Memory {
	return &Memory{store: NewInMemoryStore()}
}

// NewCacheWithStore creates a cache over store.
func NewCacheWithStore(store Store) *Memory {
	return &Memory{store: store}
}

// OnError sets a callback for failed cache reads and writes. Cache
// failures never fail the request.
func (cm *Memory) OnError(callback func(error)) {
	cm.onError = callback
}

// Store returns the backing store.
func (cm *Memory) Store() Store { return cm.store }

// Cache wraps handler so that identical inputs are answered from the
// store for ttl.
//
// Input: any data type (buffered - needs to hash input for cache key)
// Output: same as wrapped handler or cached response
// Behavior: BUFFERED - must read input to generate cache key
//
// Example:
//
//	cacheM := cache.NewCache()
//	h := cacheM.Cache(rag.Handler(chain), time.Hour)
func (cm *Memory) Cache(handler calque.Handler, ttl time.Duration) calque.Handler {
	return calque.HandlerFunc(func(r *calque.Request, w *calque.Response) error {
		input, err := io.ReadAll(r.Data)
		if err != nil {
			return err
		}

		key := "response:" + HashKey(string(input))

		cached, err := cm.store.Get(r.Context, key)
		if err != nil {
			cm.report(fmt.Errorf("cache read failed: %w", err))
		} else if cached != nil {
			_, err := w.Data.Write(cached)
			return err
		}

		var output bytes.Buffer
		if err := handler.ServeFlow(calque.NewRequest(r.Context, bytes.NewReader(input)), calque.NewResponse(&output)); err != nil {
			return err
		}

		result := output.Bytes()
		if err := cm.store.Set(r.Context, key, result, ttl); err != nil {
			cm.report(fmt.Errorf("cache write failed: %w", err))
		}

		_, err = w.Data.Write(result)
		return err
	})
}

func (cm *Memory) report(err error) {
	if cm.onError != nil {
		cm.onError(err)
	}
}

// HashKey is the hex SHA-256 of the NUL-joined parts.
func HashKey(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

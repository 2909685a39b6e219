package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a process-local Store with TTL.
type InMemoryStore struct {
	data map[string]*cacheEntry
	mu   sync.RWMutex
	stop chan struct{}
	once sync.Once
}

type cacheEntry struct {
	data      []byte
	timestamp time.Time
	ttl       time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.timestamp) > e.ttl
}

// NewInMemoryStore creates a store and starts its cleanup loop. Call
// Close to stop it.
func NewInMemoryStore() *InMemoryStore {
	store := &InMemoryStore{
		data: make(map[string]*cacheEntry),
		stop: make(chan struct{}),
	}
	go store.backgroundCleanup(5 * time.Minute)
	return store
}

// Get returns a copy of the value, or nil when missing or expired.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[key]
	if !exists || entry.expired(time.Now()) {
		return nil, nil
	}

	result := make([]byte, len(entry.data))
	copy(result, entry.data)
	return result, nil
}

// Set stores a copy of value. A ttl of 0 never expires.
func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataCopy := make([]byte, len(value))
	copy(dataCopy, value)
	s.data[key] = &cacheEntry{data: dataCopy, timestamp: time.Now(), ttl: ttl}
	return nil
}

// Delete removes key.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Exists reports whether key is present and live.
func (s *InMemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	return ok && !entry.expired(time.Now()), nil
}

// Len returns the number of live entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, entry := range s.data {
		if !entry.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the cleanup loop.
func (s *InMemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *InMemoryStore) backgroundCleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *InMemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
		}
	}
}

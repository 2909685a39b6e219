// Package badger provides a persistent embedded vector store on BadgerDB.
//
// Entries are stored as JSON under "entry/<key>"; queries scan the prefix
// and compute cosine distance in process. Badger iterates in key order, so
// equally distant matches come back in key order.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

var (
	entryPrefix  = []byte("entry/")
	dimensionKey = []byte("meta/dimension")
)

// Store implements retrieval.VectorStore using BadgerDB.
type Store struct {
	db *badger.DB
}

// Verify it implements the interface
var _ retrieval.VectorStore = (*Store)(nil)

// NewStore opens (or creates) a store at path.
//
// Example:
//
//	store, err := badger.NewStore("./data/movies")
func NewStore(path string) (*Store, error) {
	return open(badger.DefaultOptions(path).WithLogger(nil))
}

// NewInMemoryStore opens a store that lives only in memory.
func NewInMemoryStore() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert writes all entries in one transaction batch.
func (s *Store) Upsert(ctx context.Context, entries []retrieval.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	current, err := s.dimension()
	if err != nil {
		return err
	}
	dim, err := retrieval.CheckDimension(entries, current)
	if err != nil {
		return calque.WrapErr(ctx, err, "badger upsert").WithKind(calque.ErrValidation)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.Key, err)
		}
		if err := wb.Set(entryKey(e.Key), data); err != nil {
			return fmt.Errorf("write entry %s: %w", e.Key, err)
		}
	}
	if current == 0 {
		if err := wb.Set(dimensionKey, []byte(strconv.Itoa(dim))); err != nil {
			return fmt.Errorf("write dimension: %w", err)
		}
	}
	return wb.Flush()
}

// Query scans every entry and returns the k nearest.
func (s *Store) Query(ctx context.Context, vector retrieval.EmbeddingVector, k int) ([]retrieval.Match, error) {
	matches := []retrieval.Match{}

	err := s.scan(func(e retrieval.IndexEntry) error {
		d, err := retrieval.CosineDistance(vector, e.Vector)
		if err != nil {
			return calque.WrapErr(ctx, err, "badger query").WithKind(calque.ErrValidation)
		}
		matches = append(matches, retrieval.Match{Key: e.Key, Distance: d, Document: e.Document})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return retrieval.TopK(matches, k), nil
}

// Stats counts entry keys without decoding values.
func (s *Store) Stats(context.Context) (retrieval.Stats, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return retrieval.Stats{}, fmt.Errorf("badger stats: %w", err)
	}

	dim, err := s.dimension()
	if err != nil {
		return retrieval.Stats{}, err
	}
	return retrieval.Stats{Count: count, Dimension: dim}, nil
}

// Exists looks up each key.
func (s *Store) Exists(_ context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			_, err := txn.Get(entryKey(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			found[k] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger exists: %w", err)
	}
	return found, nil
}

// Health reports whether the database is open.
func (s *Store) Health(context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger store is closed")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) scan(fn func(retrieval.IndexEntry) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e retrieval.IndexEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) dimension() (int, error) {
	dim := 0
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dimensionKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			dim, err = strconv.Atoi(string(val))
			return err
		})
	})
	if err != nil {
		return 0, fmt.Errorf("badger dimension: %w", err)
	}
	return dim, nil
}

func entryKey(key string) []byte {
	return append(append([]byte(nil), entryPrefix...), key...)
}

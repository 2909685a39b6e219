package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calque-ai/movierag/pkg/calque"
)

type failingStore struct{ *InMemoryStore }

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func countingHandler(calls *atomic.Int32) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		calls.Add(1)
		var in string
		if err := calque.Read(req, &in); err != nil {
			return err
		}
		return calque.Write(res, strings.ToUpper(in))
	})
}

func TestCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var calls atomic.Int32
	cm := NewCache()
	defer cm.Store().Close()
	h := cm.Cache(countingHandler(&calls), time.Hour)

	for _, in := range []string{"viking", "viking", "samurai"} {
		out, err := calque.Serve(ctx, h, in)
		if err != nil {
			t.Fatalf("Serve(%q) error = %v", in, err)
		}
		if out != strings.ToUpper(in) {
			t.Errorf("Serve(%q) = %q", in, out)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("handler called %d times, want 2", calls.Load())
	}
}

func TestCacheStoreFailureIsBypassed(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var reported atomic.Int32
	inner := NewInMemoryStore()
	defer inner.Close()

	cm := NewCacheWithStore(failingStore{inner})
	cm.OnError(func(error) { reported.Add(1) })

	out, err := calque.Serve(context.Background(), cm.Cache(countingHandler(&calls), time.Hour), "x")
	if err != nil || out != "X" {
		t.Fatalf("Serve() = %q, %v", out, err)
	}
	if reported.Load() != 2 {
		t.Errorf("reported %d errors, want read and write", reported.Load())
	}
}

func TestCacheHandlerError(t *testing.T) {
	t.Parallel()

	cm := NewCache()
	defer cm.Store().Close()
	failing := calque.HandlerFunc(func(*calque.Request, *calque.Response) error { return errors.New("boom") })

	if _, err := calque.Serve(context.Background(), cm.Cache(failing, time.Hour), "x"); err == nil {
		t.Fatal("handler error should propagate")
	}
	if cm.Store().(*InMemoryStore).Len() != 0 {
		t.Error("failed responses must not be cached")
	}
}

func TestHashKey(t *testing.T) {
	t.Parallel()

	if HashKey("ab", "c") == HashKey("a", "bc") {
		t.Error("parts must be separated")
	}
	if len(HashKey("x")) != 64 {
		t.Errorf("HashKey length = %d", len(HashKey("x")))
	}
}

package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

// MockDimension is the vector size produced by MockClient.
const MockDimension = 64

// MockClient is a scripted Client for tests and offline runs.
//
// Completions return the scripted responses in order (the last one
// repeats). Embeddings hash words into MockDimension buckets, so texts
// sharing words are close. Errors queued with WithCompleteErrors and
// WithEmbedErrors are returned first, one per call.
type MockClient struct {
	mu          sync.Mutex
	responses   []string
	completeErr []error
	embedErr    []error

	Prompts    []string
	Embedded   []string
	LastOption CompletionOptions
}

// NewMockClient creates a mock answering with responses in order.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// WithCompleteErrors queues errors for the next completion calls. A nil
// entry lets that call succeed.
func (m *MockClient) WithCompleteErrors(errs ...error) *MockClient {
	m.completeErr = append(m.completeErr, errs...)
	return m
}

// WithEmbedErrors queues errors for the next embedding calls.
func (m *MockClient) WithEmbedErrors(errs ...error) *MockClient {
	m.embedErr = append(m.embedErr, errs...)
	return m
}

// Name returns "mock".
func (m *MockClient) Name() string { return "mock" }

// Complete returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	m.LastOption = opts
	if len(m.completeErr) > 0 {
		err := m.completeErr[0]
		m.completeErr = m.completeErr[1:]
		if err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.responses) == 0 {
		return "I don't know.", nil
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

// Embed hashes the words of text into a normalized vector.
func (m *MockClient) Embed(ctx context.Context, text string) (retrieval.EmbeddingVector, error) {
	m.mu.Lock()
	m.Embedded = append(m.Embedded, text)
	var err error
	if len(m.embedErr) > 0 {
		err = m.embedErr[0]
		m.embedErr = m.embedErr[1:]
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return HashEmbedding(text, MockDimension), nil
}

// CompleteCalls returns the number of completion calls so far.
func (m *MockClient) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// EmbedCalls returns the number of embedding calls so far.
func (m *MockClient) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Embedded)
}

// HashEmbedding is a bag-of-words feature hash, L2 normalized.
func HashEmbedding(text string, dim int) retrieval.EmbeddingVector {
	vec := make(retrieval.EmbeddingVector, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

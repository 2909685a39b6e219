// Package ai defines the language model and embedding collaborators of the
// answer pipeline and the provider-neutral error classification used to
// decide which failures are worth a retry.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
)

// CompletionOptions are the sampling settings of one completion call.
type CompletionOptions struct {
	Model       string  // Provider model id; empty uses the client default
	Temperature float64 // 0 for the most deterministic decoding available
}

// Completer sends a prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// Embedder maps text to a vector of fixed dimension.
type Embedder = retrieval.EmbeddingProvider

// Client is a provider that can do both.
type Client interface {
	Completer
	Embedder
	Name() string
}

// ProviderError is a classified failure from a model provider.
//
// StatusCode is the HTTP-equivalent status when the provider reports one,
// 0 otherwise.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

// NewProviderError wraps err with its provider and status.
func NewProviderError(provider string, statusCode int, err error) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: statusCode, Err: err}
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether a retry may succeed: rate limits, timeouts and
// server errors. Auth failures never are.
func (e *ProviderError) Transient() bool {
	switch {
	case e.Auth():
		return false
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusConflict,
		e.StatusCode >= 500:
		return true
	case e.StatusCode == 0:
		var netErr net.Error
		return errors.Is(e.Err, context.DeadlineExceeded) || (errors.As(e.Err, &netErr) && netErr.Timeout())
	}
	return false
}

// Auth reports whether the provider rejected the credentials.
func (e *ProviderError) Auth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Auth()
}

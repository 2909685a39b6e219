package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/calque-ai/movierag/pkg/middleware/ai"
	"github.com/calque-ai/movierag/pkg/middleware/ctrl"
)

func TestNew(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")

	if _, err := New(""); err == nil || !strings.Contains(err.Error(), "model name") {
		t.Errorf("New(\"\") error = %v", err)
	}
	if _, err := New("gemini-2.0-flash"); err == nil || !strings.Contains(err.Error(), "GOOGLE_API_KEY") {
		t.Errorf("New() without key error = %v", err)
	}

	c, err := New("gemini-2.0-flash", WithConfig(&Config{APIKey: "k"}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.config.EmbeddingModel != "text-embedding-004" {
		t.Errorf("EmbeddingModel = %q, want default kept after merge", c.config.EmbeddingModel)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantAuth      bool
	}{
		{"quota", genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}, true, false},
		{"permission", fmt.Errorf("call: %w", genai.APIError{Code: http.StatusForbidden}), false, true},
		{"invalid", genai.APIError{Code: http.StatusBadRequest}, false, false},
		{"network", errors.New("connection reset"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classify(tt.err)
			if got := ctrl.IsTransient(err); got != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.wantTransient)
			}
			if got := ai.IsAuth(err); got != tt.wantAuth {
				t.Errorf("IsAuth() = %v, want %v", got, tt.wantAuth)
			}
		})
	}
}

func TestCompleteCancelled(t *testing.T) {
	c, err := New("gemini-2.0-flash", WithConfig(&Config{APIKey: "k", BaseURL: "http://127.0.0.1:1/"}))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Complete(ctx, "q", ai.CompletionOptions{}); err == nil {
		t.Error("Complete() with cancelled context should fail")
	}
}

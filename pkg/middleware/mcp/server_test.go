package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/calque-ai/movierag/pkg/middleware/ai"
	"github.com/calque-ai/movierag/pkg/middleware/prompt"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval/memory"
	"github.com/calque-ai/movierag/pkg/movie"
	"github.com/calque-ai/movierag/pkg/rag"
)

func setupSession(t *testing.T, client *ai.MockClient) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	doc, err := movie.NewBuilder("").Build(movie.Record{ID: "tt11138512", Title: "The Northman", Description: "A viking prince seeks revenge."})
	if err != nil {
		t.Fatal(err)
	}
	store := memory.New()
	if err := store.Upsert(ctx, []retrieval.IndexEntry{retrieval.NewIndexEntry(doc, ai.HashEmbedding(doc.Content, ai.MockDimension))}); err != nil {
		t.Fatal(err)
	}
	retriever := retrieval.NewRetriever(client, store)
	chain := rag.NewChain(retriever, prompt.NewAssembler(), client)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := NewServer(chain, retriever, "test").Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	session, err := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil).Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		session.Close()
		serverSession.Close()
	})
	return session
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return tc.Text
}

func TestTools(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		client  func() *ai.MockClient
		tool    string
		args    map[string]any
		wantErr bool
		want    string
	}{
		{
			name: "ask",
			client: func() *ai.MockClient {
				return ai.NewMockClient("The Northman.\nSOURCE: https://www.imdb.com/title/tt11138512/")
			},
			tool: ToolAsk,
			args: map[string]any{"question": "What's a good movie about an epic viking?", "k": 1},
			want: "The Northman.\nSOURCES: https://www.imdb.com/title/tt11138512/",
		},
		{
			name: "ask fails on embedding outage",
			client: func() *ai.MockClient {
				return ai.NewMockClient().WithEmbedErrors(errors.New("down"), errors.New("down"))
			},
			tool:    ToolAsk,
			args:    map[string]any{"question": "viking"},
			wantErr: true,
			want:    "embed query",
		},
		{
			name:   "search",
			client: func() *ai.MockClient { return ai.NewMockClient() },
			tool:   ToolSearch,
			args:   map[string]any{"query": "viking revenge"},
			want:   "1. https://www.imdb.com/title/tt11138512/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			session := setupSession(t, tt.client())

			res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: tt.tool, Arguments: tt.args})
			if err != nil {
				t.Fatalf("CallTool() error = %v", err)
			}
			if res.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v", res.IsError, tt.wantErr)
			}
			if got := text(t, res); !strings.Contains(got, tt.want) {
				t.Errorf("text = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestListTools(t *testing.T) {
	t.Parallel()

	session := setupSession(t, ai.NewMockClient())
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	if strings.Join(names, ",") != ToolAsk+","+ToolSearch {
		t.Errorf("tools = %v", names)
	}
}

// Package mcp exposes the answer chain as Model Context Protocol tools so
// assistants can ask movie questions over stdio.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/retrieval"
	"github.com/calque-ai/movierag/pkg/rag"
)

// Tool names.
const (
	ToolAsk    = "ask_movies"
	ToolSearch = "search_movies"
)

// AskParams are the arguments of ask_movies.
type AskParams struct {
	Question string `json:"question" jsonschema:"the question about movies"`
	K        int    `json:"k,omitempty" jsonschema:"number of movies to read before answering"`
}

// SearchParams are the arguments of search_movies.
type SearchParams struct {
	Query string `json:"query" jsonschema:"what the movie is about"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of movies"`
}

// NewServer registers the tools over chain and retriever.
//
// Example:
//
//	server := mcp.NewServer(app.Chain, app.Retriever, "1.0.0")
//	err := server.Run(ctx, &sdk.StdioTransport{})
func NewServer(chain *rag.Chain, retriever *retrieval.Retriever, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "movierag", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAsk,
		Description: "Answer a question about the indexed movies and cite the IMDb pages used",
	}, askTool(chain))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSearch,
		Description: "Find the indexed movies closest to a description",
	}, searchTool(retriever))

	return server
}

// ServeStdio runs the server on stdin and stdout until ctx is done or the
// client disconnects.
func ServeStdio(ctx context.Context, chain *rag.Chain, retriever *retrieval.Retriever, version string) error {
	return NewServer(chain, retriever, version).Run(ctx, &mcp.StdioTransport{})
}

func askTool(chain *rag.Chain) mcp.ToolHandlerFor[AskParams, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args AskParams) (*mcp.CallToolResult, any, error) {
		var opts []rag.Option
		if args.K > 0 {
			opts = append(opts, rag.WithK(args.K))
		}
		out, err := calque.Serve(ctx, rag.Handler(chain, opts...), args.Question)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(out), nil, nil
	}
}

func searchTool(retriever *retrieval.Retriever) mcp.ToolHandlerFor[SearchParams, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args SearchParams) (*mcp.CallToolResult, any, error) {
		k := args.K
		if k <= 0 {
			k = retrieval.DefaultK
		}
		result, err := retriever.Retrieve(ctx, args.Query, k)
		if err != nil {
			return errorResult(err), nil, nil
		}

		var sb strings.Builder
		for i, m := range result.Matches {
			fmt.Fprintf(&sb, "%d. %s (distance %.4f)\n%s\n\n", i+1, m.Document.Source, m.Distance, m.Document.Content)
		}
		if sb.Len() == 0 {
			sb.WriteString("No movies indexed.")
		}
		return textResult(strings.TrimSpace(sb.String())), nil, nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(err error) *mcp.CallToolResult {
	res := textResult(err.Error())
	res.IsError = true
	return res
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/calque-ai/movierag/pkg/middleware/mcp"
)

func newMCPCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP server on stdio with the ask_movies and search_movies tools",
		Long: `Runs a Model Context Protocol server on stdin and stdout. Logs go to
stderr so they do not corrupt the protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, app, err := loadApp(cmd, global)
			if err != nil {
				return err
			}
			defer app.Close(ctx)
			return mcp.ServeStdio(ctx, app.Chain, app.Retriever, version)
		},
	}
}

// Command movierag indexes movie records and answers questions about them.
//
// Usage:
//
//	movierag ingest --file movies.yaml
//	movierag ask "What's a good movie about an epic viking?"
//	movierag serve
//	movierag mcp
//	movierag stats
//
// Settings come from a .env file and MOVIERAG_* environment variables;
// the flags below override them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/config"
	"github.com/calque-ai/movierag/pkg/ingest"
	"github.com/calque-ai/movierag/pkg/movie"
)

var version = "dev"

// globalOptions are the persistent flags.
type globalOptions struct {
	envFile   string
	store     string
	storeURL  string
	logLevel  string
	logFormat string
	preload   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "movierag",
		Short:         "Answer movie questions from an indexed catalogue",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load")
	flags.StringVar(&opts.store, "store", "", "vector store: memory, badger, pgvector, qdrant or weaviate")
	flags.StringVar(&opts.storeURL, "store-url", "", "store connection string, URL or badger directory")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "console, json or slog")
	flags.StringVar(&opts.preload, "preload", "", "records file ingested before the command runs")

	root.AddCommand(
		newIngestCmd(opts),
		newAskCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

// loadApp reads the configuration, applies the flags and builds the
// pipeline. The caller closes the app.
func loadApp(cmd *cobra.Command, opts *globalOptions) (context.Context, *config.App, error) {
	if err := config.LoadEnvFiles(opts.envFile); err != nil {
		return nil, nil, err
	}
	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()
	if opts.store != "" {
		cfg.Store.Backend = opts.store
	}
	if opts.storeURL != "" {
		cfg.Store.URL = opts.storeURL
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	ctx := cmd.Context()
	app, err := config.Build(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	ctx = calque.WithLogger(ctx, app.Log)

	if opts.preload != "" {
		if _, err := ingestFile(ctx, app.Ingester, opts.preload); err != nil {
			_ = app.Close(ctx)
			return nil, nil, err
		}
	}
	return ctx, app, nil
}

func ingestFile(ctx context.Context, in *ingest.Ingester, path string) (*ingest.Report, error) {
	records, err := movie.LoadRecords(path)
	if err != nil {
		return nil, err
	}
	return in.Run(ctx, records)
}

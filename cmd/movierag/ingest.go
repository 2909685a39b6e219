package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/calque-ai/movierag/pkg/ingest"
)

func newIngestCmd(global *globalOptions) *cobra.Command {
	var (
		file   string
		policy string
		batch  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed movie records and store them",
		Long: `Reads a YAML or JSON list of records, keeps the movies, and stores the
documents that are not indexed yet. Invalid records are skipped and
reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := ingest.ParsePolicy(policy)
			if err != nil {
				return err
			}
			ctx, app, err := loadApp(cmd, global)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			in := ingest.New(app.Embedder, app.Store,
				ingest.WithPolicy(p),
				ingest.WithWorkers(app.Config.Ingest.Workers),
				ingest.WithRateLimit(app.Config.Ingest.EmbedRPS, time.Second),
				ingest.WithBatchSize(batch),
				ingest.WithBaseURL(app.Config.RAG.SourceBaseURL),
			)
			report, err := ingestFile(ctx, in, file)
			if report == nil {
				return err
			}

			if asJSON {
				data, jerr := json.MarshalIndent(report, "", "  ")
				if jerr != nil {
					return errors.Join(err, jerr)
				}
				cmd.Println(string(data))
				return err
			}

			if report.Skipped {
				cmd.Println("Store is not empty, nothing ingested.")
				return err
			}
			cmd.Printf("Records: %d, movies: %d, invalid: %d, duplicates: %d\n",
				report.Records, report.Movies, report.Invalid, report.Duplicates)
			cmd.Printf("Already stored: %d, stored now: %d, failed: %d (%s)\n",
				report.Existing, report.Upserted, report.Failed, report.Duration.Round(time.Millisecond))
			for _, e := range report.Errors {
				cmd.PrintErrln(" -", e)
			}
			if err != nil {
				return fmt.Errorf("ingest %s: %w", file, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "records file (YAML or JSON)")
	cmd.Flags().StringVar(&policy, "policy", "missing", "missing or skip-if-not-empty")
	cmd.Flags().IntVar(&batch, "batch", 64, "entries per upsert")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/calque-ai/movierag/pkg/calque"
)

func newStatsCmd(global *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the number of stored documents and their dimension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, app, err := loadApp(cmd, global)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			stats, err := app.Store.Stats(ctx)
			if err != nil {
				return calque.WrapErr(ctx, err, "read store stats").WithKind(calque.ErrStoreUnavailable)
			}
			if asJSON {
				data, err := json.Marshal(map[string]any{"store": app.Config.Store.Backend, "count": stats.Count, "dimension": stats.Dimension})
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Printf("store: %s\ndocuments: %d\ndimension: %d\n", app.Config.Store.Backend, stats.Count, stats.Dimension)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

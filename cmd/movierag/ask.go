package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calque-ai/movierag/pkg/rag"
)

func newAskCmd(global *globalOptions) *cobra.Command {
	var (
		k          int
		showPrompt bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed movies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := loadApp(cmd, global)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			var opts []rag.Option
			if k > 0 {
				opts = append(opts, rag.WithK(k))
			}
			res, err := app.Chain.Run(ctx, strings.Join(args, " "), opts...)
			if err != nil {
				return err
			}

			if showPrompt {
				cmd.Println(res.Prompt)
				cmd.Println(strings.Repeat("-", 40))
			}
			if asJSON {
				data, err := json.MarshalIndent(res.Answer, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Println(res.Answer.String())
			if res.Answer.Unsourced {
				cmd.PrintErrln("warning: the answer cites no source")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "documents to retrieve (default from MOVIERAG_TOP_K)")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the assembled prompt")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}

package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/notesearch/internal/index"
	"github.com/Aman-CERP/notesearch/internal/ui"
)

func newSearchCmd() *cobra.Command {
	var offline bool
	var topK int
	var minScore float64
	var anchor string
	var toolFormat bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed vault",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			app, err := newApp(offline)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.restoreOrBuild(cmd); err != nil {
				return err
			}

			if toolFormat {
				out := app.manager.ExecuteToolSearch(cmd.Context(), query, topK)
				cmd.Println(out)
				return nil
			}

			results := app.manager.Search(cmd.Context(), query, index.SearchOptions{
				TopK:       topK,
				MinScore:   minScore,
				AnchorPath: anchor,
			})
			ui.NewPrinter(os.Stdout).PrintResults(results, query)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use deterministic local embeddings (no API)")
	cmd.Flags().IntVarP(&topK, "top", "k", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum lexical score")
	cmd.Flags().StringVar(&anchor, "anchor", "", "Boost results near this vault-relative note")
	cmd.Flags().BoolVar(&toolFormat, "tool", false, "Emit assistant-tool markdown output")
	return cmd
}

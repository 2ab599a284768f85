package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var offline bool
	var rebuild bool
	var withEmbeddings bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the vault index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(offline)
			if err != nil {
				return err
			}
			defer app.Close()

			if rebuild {
				err = app.manager.BuildIndex(cmd.Context())
			} else {
				err = app.restoreOrBuild(cmd)
			}
			if err != nil {
				return err
			}

			stats := app.manager.Stats()
			fmt.Fprintf(os.Stdout, "Indexed %d files (%d chunks).\n", stats.Files, stats.Chunks)

			if withEmbeddings || offline {
				if err := app.manager.BuildEmbeddingIndex(cmd.Context(), printEmbedProgress); err != nil {
					return err
				}
				stats = app.manager.Stats()
				fmt.Fprintf(os.Stdout, "Embedded %d chunks (%d tokens used).\n", stats.Vectors, stats.TokensUsed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use deterministic local embeddings (no API)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Ignore the saved cache and re-chunk everything")
	cmd.Flags().BoolVar(&withEmbeddings, "embeddings", false, "Also build the embedding index")
	return cmd
}

func printEmbedProgress(done, total int) {
	fmt.Fprintf(os.Stderr, "\rembedding %d/%d", done, total)
	if done == total {
		fmt.Fprintln(os.Stderr)
	}
}

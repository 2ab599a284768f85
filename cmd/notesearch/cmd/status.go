package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/notesearch/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index state for the vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(offline)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.restoreOrBuild(cmd); err != nil {
				return err
			}
			ui.NewPrinter(os.Stdout).PrintStats(app.manager.Stats())
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use deterministic local embeddings (no API)")
	return cmd
}

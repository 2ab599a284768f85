package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/notesearch/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("notesearch %s (commit %s, built %s, %s)\n",
				version.Version, version.Commit, version.Date, version.GoVersion)
		},
	}
}

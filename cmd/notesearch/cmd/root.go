// Package cmd provides the CLI commands for notesearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/notesearch/internal/config"
	"github.com/Aman-CERP/notesearch/internal/logging"
	"github.com/Aman-CERP/notesearch/pkg/version"
)

var (
	vaultDir  string
	debugMode bool

	logCleanup func()
)

// NewRootCmd creates the root command for the notesearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notesearch",
		Short: "Hybrid search over a folder of notes",
		Long: `notesearch indexes a folder of markdown notes and serves hybrid
(lexical + semantic) search over it, with link-aware result boosting.

Run 'notesearch index' once, then 'notesearch search <query>'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("notesearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&vaultDir, "vault", "C", ".", "Vault directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
		}
	}

	cmd.AddCommand(
		newIndexCmd(),
		newSearchCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return cmd
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}
	_, cleanup, err := logging.Setup(logging.Config{
		Level:    level,
		FilePath: cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	logCleanup = cleanup
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(vaultDir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the CLI.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command_failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

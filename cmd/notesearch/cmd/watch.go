package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/notesearch/internal/idle"
	"github.com/Aman-CERP/notesearch/internal/index"
	"github.com/Aman-CERP/notesearch/internal/watcher"
)

// activityHandler forwards watcher events to the manager and restarts
// the idle countdown, so background embedding only runs while the vault
// is quiet.
type activityHandler struct {
	manager *index.Manager
	idle    idle.Source
}

var _ watcher.Handler = (*activityHandler)(nil)

func (h *activityHandler) DebouncedUpdate(path string) {
	h.idle.Touch()
	h.manager.DebouncedUpdate(path)
}

func (h *activityHandler) RemoveFile(path string) {
	h.idle.Touch()
	h.manager.RemoveFile(path)
}

func (h *activityHandler) RemoveFolder(path string) {
	h.idle.Touch()
	h.manager.RemoveFolder(path)
}

func newWatchCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault and keep the index current",
		Long: `Builds the index, then watches for file changes and applies
incremental updates until interrupted. When embeddings are configured,
idle periods are used to embed pending chunks in the background.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(offline)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.restoreOrBuild(cmd); err != nil {
				return err
			}
			stats := app.manager.Stats()
			fmt.Fprintf(os.Stdout, "Watching %s (%d files indexed). Ctrl-C to stop.\n",
				app.src.Root(), stats.Files)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var handler watcher.Handler = app.manager
			var idleSrc *idle.Timer
			if app.manager.EmbeddingEnabled() {
				idleSrc = idle.NewTimer(app.cfg.Embeddings.IdleDelay)
				defer idleSrc.Stop()
				handler = &activityHandler{manager: app.manager, idle: idleSrc}
			}

			w, err := watcher.New(app.src, handler, nil)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return w.Run(gctx)
			})
			if idleSrc != nil {
				g.Go(func() error {
					app.manager.RunIdleEmbedding(gctx, idleSrc)
					return nil
				})
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use deterministic local embeddings (no API)")
	return cmd
}

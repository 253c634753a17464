package main

import (
	"fmt"
	"os"
	"time"

	"pipeboard/internal/config"
	"pipeboard/internal/pipeline"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

// watchCmd keeps the board on screen and is the long-lived home of the
// config watcher: edits to .pipeboard/config.yaml take effect without a
// restart.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Render the board continuously",
	Long: `Re-renders the board every interval. The staleness window still
applies, so most renders are served from cache and only stale ones hit the
CRM. While running, edits to .pipeboard/config.yaml are picked up live
(cache TTL, default stages, logging).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := buildStore()
		if err != nil {
			return err
		}

		w, err := config.NewWatcher(workspace)
		if err != nil {
			return err
		}
		w.Subscribe(applyConfig(store))
		if err := w.Start(cmd.Context()); err != nil {
			return err
		}
		defer w.Stop()

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			snap, err := store.Load(cmd.Context(), false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			} else {
				printBoard(os.Stdout, store, snap)
			}

			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

// applyConfig returns a watcher subscriber that pushes reloaded settings
// into the running store.
func applyConfig(store *pipeline.Store) func(*config.Config) {
	return func(cfg *config.Config) {
		store.Cache().SetTTL(cfg.GetCacheTTL())
		for _, stage := range cfg.Pipeline.DefaultStages {
			store.Registry().Register(stage)
		}
	}
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "re-render interval")
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"pipeboard/internal/pipeline"

	"github.com/spf13/cobra"
)

// boardCmd prints the pipeline grouped by stage.
var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the pipeline board",
	Long: `Fetches the pipeline (or serves the cached snapshot when it is still
fresh) and prints every stage column with its leads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := buildStore()
		if err != nil {
			return err
		}

		snap, err := store.Load(cmd.Context(), false)
		if err != nil {
			return err
		}
		printBoard(os.Stdout, store, snap)
		return nil
	},
}

// refreshCmd forces a fetch regardless of cache freshness.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force-refresh the pipeline and show the board",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := buildStore()
		if err != nil {
			return err
		}

		snap, err := store.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		printBoard(os.Stdout, store, snap)
		return nil
	},
}

func printBoard(out io.Writer, store *pipeline.Store, snap *pipeline.Snapshot) {
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	defer w.Flush()

	for _, stage := range store.Registry().Names() {
		leads := snap.LeadsByStage[stage]
		fmt.Fprintf(w, "%s\t(%d)\n", stage, len(leads))
		for _, l := range leads {
			name := l.DisplayName()
			if name == "" {
				name = l.ID
			}
			fmt.Fprintf(w, "  %s\t%s\n", name, l.ID)
		}
		if line := metricsLine(snap.Metrics[stage]); line != "" {
			fmt.Fprintf(w, "  ~\t%s\n", line)
		}
	}
	fmt.Fprintf(w, "\n%d leads, fetched %s\n", snap.TotalLeads(), snap.LastUpdated.Format("15:04:05"))
}

// metricsLine renders the metric keys the board displays, skipping any the
// CRM did not report for the stage.
func metricsLine(metrics map[string]any) string {
	parts := make([]string, 0, 2)
	if v, ok := metrics["avgTime"]; ok {
		parts = append(parts, fmt.Sprintf("avgTime=%v", v))
	}
	if v, ok := metrics["conversion"]; ok {
		parts = append(parts, fmt.Sprintf("conversion=%v", v))
	}
	return strings.Join(parts, " ")
}

package commands

import (
	"context"
	"log/slog"
	"time"

	"steamharvest/lib/harvest"
	"steamharvest/lib/serviceutil"
	"steamharvest/lib/steam"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"
)

var (
	scanOutfile *string
	scanRefresh *bool
)

func init() {
	scanOutfile = scanCmd.Flags().StringP("outfile", "o", "", "Dataset file to write to (default games.json).")
	scanRefresh = scanCmd.Flags().Bool("refresh", false, "Re-fetch the app list even when a cached one exists.")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan [--outfile <path/to/games.json>] [--refresh]",
	Short: "Walks the app catalog and harvests metadata for every game not seen yet.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := serviceutil.SignalContext()

		state, err := harvest.LoadState(cfg.paths(*scanOutfile))
		if err != nil {
			serviceutil.Fatal("failed to restore state", err)
		}

		client := steam.NewClient(cfg.clientOptions())

		key := ""
		if *scanRefresh || len(state.Universe) == 0 {
			key = cfg.apiKey()
		}
		err = harvest.EnsureUniverse(ctx, client, state, key, *scanRefresh)
		if err != nil {
			serviceutil.Fatal("failed to obtain the app list", err)
		}

		slog.Info("scanning catalog, interrupt to stop and flush", "candidates", len(state.Universe))
		runHarvest(ctx, client, state, cfg, state.Universe)
	},
}

// runHarvest drives one harvesting run with a live progress bar and exits
// the process on systemic failure.
func runHarvest(ctx context.Context, client *steam.Client, state *harvest.State, cfg Config, candidates []string) {
	h := harvest.New(client, state, cfg.harvestConfig())

	pw := progress.NewWriter()
	pw.SetUpdateFrequency(time.Millisecond * 250)
	tracker := &progress.Tracker{
		Message: "harvesting",
		Total:   int64(len(candidates)),
	}
	pw.AppendTracker(tracker)
	go pw.Render()
	h.SetTracker(tracker)

	t1 := time.Now()
	summary, err := h.Run(ctx, candidates)
	tracker.MarkAsDone()
	pw.Stop()
	if err != nil {
		serviceutil.Fatal("harvesting aborted", err)
	}

	slog.Info("harvest summary",
		"added", summary.Added,
		"rejected", summary.Rejected,
		"deferred", summary.Deferred,
		"skipped", summary.Skipped,
		"seconds", time.Since(t1).Seconds(),
	)
}

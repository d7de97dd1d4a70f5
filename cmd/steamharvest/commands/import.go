package commands

import (
	"log/slog"

	"steamharvest/lib/harvest"
	"steamharvest/lib/serviceutil"
	"steamharvest/lib/steam"

	"github.com/spf13/cobra"
)

var importFile *string

func init() {
	importFile = importCmd.Flags().StringP("file", "f", "", "CSV file whose first column holds app identifiers.")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import --file <path/to/ids.csv>",
	Short: "Harvests an explicit identifier subset instead of the full catalog.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := serviceutil.SignalContext()

		state, err := harvest.LoadState(cfg.paths(""))
		if err != nil {
			serviceutil.Fatal("failed to restore state", err)
		}

		ids, err := harvest.ReadIDsFromCSV(*importFile)
		if err != nil {
			serviceutil.Fatal("failed to read import file", err)
		}

		candidates := harvest.FilterCandidates(state, ids)
		slog.Info("import prepared",
			"rows", len(ids),
			"new", len(candidates),
			"already_known", len(ids)-len(candidates),
		)
		if len(candidates) == 0 {
			slog.Info("nothing to do")
			return
		}

		client := steam.NewClient(cfg.clientOptions())
		runHarvest(ctx, client, state, cfg, candidates)
	},
}

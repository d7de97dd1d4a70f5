package commands

import (
	"log/slog"
	"os"
	"time"

	"steamharvest/lib/harvest"
	"steamharvest/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"
)

var (
	exportIn  *string
	exportOut *string
)

func init() {
	exportIn = exportCmd.Flags().StringP("file", "f", "games.json", "Dataset file to read.")
	exportOut = exportCmd.Flags().StringP("out", "o", "games.csv", "CSV file to write.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--file <games.json>] [--out <games.csv>]",
	Short: "Converts the accepted dataset to a flat CSV table.",
	Run: func(cmd *cobra.Command, args []string) {
		dataset, err := harvest.Load(*exportIn, map[string]harvest.Record{})
		if err != nil {
			serviceutil.Fatal("failed to load dataset", err)
		}
		slog.Info("dataset loaded", "games", len(dataset))

		out, err := os.Create(*exportOut)
		if err != nil {
			serviceutil.Fatal("failed to create output file", err)
		}

		pw := progress.NewWriter()
		pw.SetUpdateFrequency(time.Millisecond * 250)
		tracker := &progress.Tracker{
			Message: "exporting",
			Total:   int64(len(dataset)),
		}
		pw.AppendTracker(tracker)
		go pw.Render()

		err = harvest.ExportCSV(dataset, out, tracker)
		tracker.MarkAsDone()
		pw.Stop()
		if err != nil {
			// drop the partial file
			out.Close()
			os.Remove(*exportOut)
			serviceutil.Fatal("export failed", err)
		}
		err = out.Close()
		if err != nil {
			serviceutil.Fatal("failed to finish output file", err)
		}
		slog.Info("export finished", "out", *exportOut)
	},
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cyclescan/internal/app"
)

var (
	scanBatch     int
	scanAll       bool
	scanThreshold float64
	scanPNGPath   string
	scanSave      bool
	scanNotify    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a registry batch for price cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !scanAll && scanBatch <= 0 {
			return fmt.Errorf("--batch must be greater than zero (or use --all)")
		}

		opts := app.ScanOptions{
			Batch:   scanBatch,
			All:     scanAll,
			PNGPath: scanPNGPath,
			Save:    scanSave,
			Notify:  scanNotify,
		}
		if cmd.Flags().Changed("threshold") {
			opts.Threshold = &scanThreshold
		}

		return getApp().Scan(cmd.Context(), opts)
	},
}

func init() {
	scanCmd.Flags().IntVarP(&scanBatch, "batch", "b", 0, "1-based batch number (see `cyclescan batches`)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Scan every batch in turn")
	scanCmd.Flags().Float64Var(&scanThreshold, "threshold", 0, "Return threshold in percent (defaults to config)")
	scanCmd.Flags().StringVar(&scanPNGPath, "png", "", "Path to write the month histogram PNG")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Persist the run to the database")
	scanCmd.Flags().BoolVar(&scanNotify, "notify", false, "Send the run summary to the configured alert channel")
	scanCmd.MarkFlagsMutuallyExclusive("batch", "all")
}

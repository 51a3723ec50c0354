package cli

import (
	"github.com/spf13/cobra"

	"cyclescan/internal/app"
)

var (
	exportRunID     string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxCycles int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the cycles of a persisted run as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			RunID:     exportRunID,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxCycles: exportMaxCycles,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "Run ID to export (defaults to the latest run)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG month histogram")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxCycles, "max-cycles", 0, "Maximum cycles to export (defaults to config)")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cyclescan/internal/app"
)

var (
	analyzeToken     string
	analyzeThreshold float64
	analyzeCSVPath   string
	analyzePricePNG  string
	analyzeMonthPNG  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol]",
	Short: "Analyse one instrument: cycles, seasonality test, next likely month",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AnalyzeOptions{
			Token:    analyzeToken,
			CSVPath:  analyzeCSVPath,
			PricePNG: analyzePricePNG,
			MonthPNG: analyzeMonthPNG,
		}
		if cmd.Flags().Changed("threshold") {
			opts.Threshold = &analyzeThreshold
		}
		if len(args) == 1 {
			opts.Symbol = args[0]
		}
		if opts.Symbol == "" && opts.Token == "" {
			return fmt.Errorf("symbol argument or --token is required")
		}

		return getApp().Analyze(cmd.Context(), opts)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeToken, "token", "", "Provider token, bypassing the registry")
	analyzeCmd.Flags().Float64Var(&analyzeThreshold, "threshold", 0, "Return threshold in percent (defaults to config)")
	analyzeCmd.Flags().StringVar(&analyzeCSVPath, "csv", "", "Path to write the detected cycles as CSV")
	analyzeCmd.Flags().StringVar(&analyzePricePNG, "price-png", "", "Path to write the price chart with shaded cycles")
	analyzeCmd.Flags().StringVar(&analyzeMonthPNG, "month-png", "", "Path to write the start-month histogram")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cyclescan/internal/app"
)

var (
	showLimit  int
	showLatest bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display persisted scan runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:  showLimit,
			Latest: showLatest,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of runs to display")
	showCmd.Flags().BoolVar(&showLatest, "latest", false, "Show the rows of the latest run instead")
}

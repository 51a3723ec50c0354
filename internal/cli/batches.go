package cli

import (
	"github.com/spf13/cobra"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List registry batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Batches()
	},
}

package cli

import (
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify-latest",
	Short: "Re-send the latest persisted run summary to the alert channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().NotifyLatest(cmd.Context())
	},
}

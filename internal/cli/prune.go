package cli

import (
	"github.com/spf13/cobra"

	"crm-alerts/internal/app"
)

var (
	pruneKeepDays int
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete pipeline snapshots older than the retention horizon",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.PruneOptions{
			KeepDays: pruneKeepDays,
		}
		return getApp().Prune(cmd.Context(), opts)
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneKeepDays, "keep-days", 90, "Snapshots younger than this many days are kept")
}

package cli

import (
	"github.com/spf13/cobra"

	"crm-alerts/internal/app"
)

var (
	checkFile  string
	checkForce bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single evaluation pass and print the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CheckOptions{
			File:  checkFile,
			Force: checkForce,
		}
		return getApp().Check(cmd.Context(), opts)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkFile, "file", "", "Evaluate opportunities from a JSON export instead of the feed")
	checkCmd.Flags().BoolVar(&checkForce, "force", false, "Bypass the minimum-interval gate")
}

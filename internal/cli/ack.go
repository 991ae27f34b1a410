package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ackCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge a retained alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return fmt.Errorf("alert id must not be empty")
		}
		return getApp().Ack(cmd.Context(), args[0])
	},
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsflow/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			_, message, err := notifications.SendTest(cmd.Context(), cfg, nil)
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return err
		},
	})
	return notifyCmd
}

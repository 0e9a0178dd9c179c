package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var leaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "Leave the current channel without opening it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		rec, u, err := a.user()
		if err != nil {
			return err
		}
		cred, ok := rec.Credential()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "not in a channel")
			return nil
		}

		if err := a.api.LeaveChannel(cmd.Context(), cred, u.ID); err != nil {
			return fmt.Errorf("leave channel: %w", err)
		}
		if err := a.store.ClearCredential(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "left the channel")
		return nil
	},
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user the server knows this client as",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		rec, _, err := a.user()
		if err != nil {
			return err
		}

		me, err := a.api.FetchCurrentUser(cmd.Context())
		if err != nil {
			return a.forgetUser(err)
		}

		name := rec.UserName
		if me.ID != rec.UserID || name == "" {
			if name, err = a.api.FetchDisplayName(cmd.Context(), me.ID); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", name, me.ID)
		if cred, ok := rec.Credential(); ok {
			fmt.Fprintf(out, "in channel (%s)\n", cred.Scheme)
		}
		return nil
	},
}

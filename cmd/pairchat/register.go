package main

import (
	"fmt"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Create an anonymous user with a display name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := domain.ValidateName(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		u, err := a.api.CreateUser(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := a.store.Clear(); err != nil {
			return err
		}
		if err := a.store.SaveUser(u); err != nil {
			return err
		}
		if err := a.store.SaveSession(a.api.Session()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "registered as %s (%s)\n", u.Name, u.ID)
		return nil
	},
}

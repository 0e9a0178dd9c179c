package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/internal/transport/ws"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Wait for a peer and store the new channel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		_, u, err := a.user()
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "waiting for a peer...")
		if _, err := a.match(cmd.Context(), u); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "matched, run `pairchat chat`")
		return nil
	},
}

func (a *app) match(ctx context.Context, u domain.User) (domain.Credential, error) {
	target, err := ws.URL(a.cfg.Server.BaseURL, a.cfg.Server.MatchPath, u.ID, nil)
	if err != nil {
		return domain.Credential{}, err
	}
	slog.Info("match: waiting", "user", u.ID)

	m := ws.NewMatcher(ws.MatchOptions{
		URL:          target,
		Scheme:       a.scheme,
		WriteTimeout: a.cfg.Session.Write(),
	}, a.store)
	return m.Match(ctx)
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cwrk-planet/pairchat/internal/render"
	"github.com/cwrk-planet/pairchat/internal/session"
	"github.com/cwrk-planet/pairchat/internal/transport/ws"
	"github.com/cwrk-planet/pairchat/internal/tui"
	"github.com/cwrk-planet/pairchat/pkg/errs"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the current channel (matching first if there is none)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(true)
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
			fmt.Fprintln(cmd.OutOrStdout(), "waiting for a peer...")
			if cred, err = a.match(ctx, u); err != nil {
				return err
			}
		}

		target, err := ws.URL(a.cfg.Server.BaseURL, a.cfg.Server.ChatPath, u.ID, &cred)
		if err != nil {
			return err
		}

		transcript := render.NewRecorder()
		s, err := session.New(session.Config{
			Self:       u,
			Credential: cred,
			Backend:    a.api,
			Store:      a.store,
			Sink:       transcript,
			Notifier:   render.NewBell(os.Stdout),
			Dial: session.DialWS(ws.Options{
				URL:          target,
				PingEvery:    a.cfg.Session.Ping(),
				WriteTimeout: a.cfg.Session.Write(),
			}),
			TypingDebounce: a.cfg.Session.Debounce(),
		})
		if err != nil {
			return err
		}

		slog.Info("chat: open", "user", u.ID, "scheme", cred.Scheme)
		err = tui.Run(ctx, s, transcript)
		if errors.Is(err, errs.ErrAuthExpired) {
			fmt.Fprintln(cmd.OutOrStdout(), "channel closed, run `pairchat chat` to find a new peer")
			return nil
		}
		return err
	},
}

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwrk-planet/pairchat/config"
	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/internal/store"
	httpx "github.com/cwrk-planet/pairchat/internal/transport/http"
	"github.com/cwrk-planet/pairchat/pkg/errs"
	"github.com/cwrk-planet/pairchat/pkg/logger"
)

// app: зависимости, общие для всех команд.
type app struct {
	cfg    *config.Config
	scheme domain.Scheme
	store  *store.FileStore
	api    *httpx.Client
	logOut io.Closer
}

// newApp читает конфиг, поднимает логгер и клиента API.
// interactive: TUI занимает терминал, логи уходят в файл.
func newApp(interactive bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: load config: %v", errs.ErrInvalidInput, err)
	}

	a := &app{
		cfg:    cfg,
		scheme: domain.Scheme(cfg.Server.Scheme),
		store:  store.NewFileStore(cfg.Store.Path),
	}

	var out io.Writer = os.Stderr
	path := cfg.Logging.Output
	if interactive && path == "" {
		path = filepath.Join(filepath.Dir(cfg.Store.Path), "pairchat.log")
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
		w, err := logger.OpenOutput(path)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		a.logOut, out = w, w
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
		Output:    out,
	})

	rec, err := a.store.Load()
	if err != nil {
		a.close()
		return nil, err
	}

	p := cfg.API.Paths
	a.api, err = httpx.New(httpx.Options{
		BaseURL: cfg.Server.BaseURL,
		Scheme:  a.scheme,
		Timeout: cfg.API.RequestTimeout(),
		Session: rec.Session,
		Routes: httpx.Routes{
			DisplayName:  p.DisplayName,
			OnlineUsers:  p.OnlineUsers,
			ChannelUsers: p.ChannelUsers,
			Backlog:      p.Backlog,
			LeaveChannel: p.LeaveChannel,
			CreateUser:   p.CreateUser,
			CurrentUser:  p.CurrentUser,
		},
	})
	if err != nil {
		a.close()
		return nil, err
	}

	slog.Debug("pairchat: ready", "server", cfg.Server.BaseURL, "scheme", a.scheme, "store", cfg.Store.Path)
	return a, nil
}

func (a *app) close() {
	if a.logOut != nil {
		_ = a.logOut.Close()
	}
}

// user: сохранённый профиль, без него чат невозможен.
func (a *app) user() (store.Record, domain.User, error) {
	rec, err := a.store.Load()
	if err != nil {
		return rec, domain.User{}, err
	}
	u, ok := rec.User()
	if !ok {
		return rec, u, fmt.Errorf("%w: run `pairchat register <name>` first", store.ErrNoUser)
	}
	return rec, u, nil
}

// forgetUser: сервер не узнал пользователя, локальный профиль устарел.
func (a *app) forgetUser(err error) error {
	if errors.Is(err, errs.ErrNotAuthenticated) {
		if cerr := a.store.Clear(); cerr != nil {
			slog.Warn("pairchat: clear store", "err", cerr)
		}
		return fmt.Errorf("%w: stored profile cleared, register again", err)
	}
	return err
}

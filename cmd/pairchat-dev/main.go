package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/pairchat/config"
	"github.com/cwrk-planet/pairchat/internal/devserver"
	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   "pairchat-dev",
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting pairchat-dev",
		"env", cfg.Logging.Env, "scheme", cfg.Server.Scheme, "addr", cfg.Dev.Addr)

	// --- server ---
	srv, err := devserver.New(devserver.Options{
		Scheme:    domain.Scheme(cfg.Server.Scheme),
		Secret:    []byte(cfg.Dev.Secret),
		TokenTTL:  cfg.Dev.TTL(),
		PingEvery: cfg.Dev.Ping(),
		ChatPath:  cfg.Server.ChatPath,
		MatchPath: cfg.Server.MatchPath,
	})
	if err != nil {
		log.Fatalf("devserver: %v", err)
	}

	// WriteTimeout не ставим: он рвёт долгоживущие сокеты
	httpSrv := &http.Server{
		Addr:        cfg.Dev.Addr,
		Handler:     srv.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.Dev.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}

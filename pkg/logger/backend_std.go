package logger

import "log/slog"

func newStdHandler(cfg Config) slog.Handler {
	return slog.NewTextHandler(cfg.output(), &slog.HandlerOptions{
		Level:     cfg.level(),
		AddSource: cfg.AddSource,
	})
}

package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. JSON output carries source locations
// for log aggregation; the text handler is the development default. The env
// attribute is stamped on every record so staging and production streams stay
// distinguishable in a shared sink.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	logger := slog.New(handler)
	if cfg != nil && cfg.AppEnv != "" {
		logger = logger.With(slog.String("env", cfg.AppEnv))
	}
	return logger
}

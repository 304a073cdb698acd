// Package observability provides logging and metrics initialization.
package observability

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/stolasapp/notebook/internal/config"
)

// InitSlog initializes a logger with the given config. When running in a
// terminal, it uses a human-readable text format; otherwise it uses JSON for
// structured logging.
func InitSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.DevMode,
		Level:     toLogLevel(cfg.LogLevel),
	}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stdin.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func toLogLevel(lvl config.LogLevel) slog.Level {
	switch lvl {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

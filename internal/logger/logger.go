package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/pion/logging"

	"github.com/mossy-p/emocall/config"
)

// New builds the process logger for env: readable text for local work,
// JSON for development and production.
func New(env string) *slog.Logger {
	return newWithWriter(env, os.Stdout)
}

func newWithWriter(env string, w io.Writer) *slog.Logger {
	switch env {
	case config.EnvLocal:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDevelopment:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProduction:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// PionFactory configures pion's internal loggers. They are noisy, so
// only local runs get more than warnings.
func PionFactory(env string) logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = os.Stderr
	f.DefaultLogLevel = logging.LogLevelWarn
	if env == config.EnvLocal {
		f.DefaultLogLevel = logging.LogLevelInfo
	}
	return f
}

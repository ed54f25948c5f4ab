// Package logger builds the process-wide slog logger from config.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ja7ad/proctop/pkg/config"
)

// New returns a logger writing to stderr at cfg.LogLevel in cfg.LogFormat.
func New(cfg *config.Config) *slog.Logger {
	return NewWriter(os.Stderr, cfg)
}

func NewWriter(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}
	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package log configures the process-wide structured logger shared by the
// approvals binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on stderr at the requested level. Unknown
// level names fall back to info.
func Setup(logLevel string) {
	level := slog.LevelInfo

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule tags the default logger with the module attribute every service
// component logs under.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

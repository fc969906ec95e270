// Package logging constructs the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger. Dev environments log at debug level.
func New(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

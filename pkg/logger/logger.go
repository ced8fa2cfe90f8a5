package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init builds the process-wide JSON logger and installs it as the
// slog default. Level comes from LOG_LEVEL (debug|info|warn|error).
func Init() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

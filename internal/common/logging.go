package common

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel maps a LOG_LEVEL value onto a slog level (default info).
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// SetupLogger builds the process logger: JSON to stdout, and when cfg.File is set
// the same records fanned out to a JSON log file. The returned cleanup closes the file.
func SetupLogger(cfg LogConfig) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	stdoutHandler := slog.NewJSONHandler(os.Stdout, opts)

	if cfg.File == "" {
		logger := slog.New(stdoutHandler)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(stdoutHandler)
		logger.Error("failed to open log file, using stdout only", "error", err, "file", cfg.File)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	logger := slog.New(slogmulti.Fanout(stdoutHandler, slog.NewJSONHandler(file, opts)))
	slog.SetDefault(logger)
	return logger, file.Close
}

package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configure installs the default slog logger. An empty file logs to stdout,
// anything else is written through a rotating file.
func Configure(levelStr, env, file string) {
	slog.SetDefault(New(levelStr, env, output(file)))
}

func New(levelStr, env string, w io.Writer) *slog.Logger {
	level := parseLogLevel(levelStr)
	var handler slog.Handler

	if env == "dev" || env == "development" {
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

func output(file string) io.Writer {
	if file == "" || file == "console" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   filepath.ToSlash(file),
		MaxSize:    5, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package logger

import (
	"log/slog"
	"os"

	"ragviet-backend/internal/config"
)

// Logger is the process-wide structured logger: JSON, one object per
// line on stdout, so the log shipper needs no parsing rules.
var Logger *slog.Logger

// InitLogger derives the level from the Gin mode: debug mode logs
// everything with source positions, release logs info and above.
func InitLogger(cfg *config.Config) {
	level := slog.LevelInfo
	addSource := false
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
		addSource = true
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}))
	slog.SetDefault(Logger)
	Logger.Info("logging initialized", "level", level.String(), "mode", cfg.GinMode)
}

// The helpers below are nil-safe so packages can log before InitLogger
// runs (or in tests that never call it).

func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}

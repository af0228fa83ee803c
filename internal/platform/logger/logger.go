package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. "dev" and "development" get the console encoder at
// debug level; anything else gets production JSON with ISO8601 timestamps.
func New(env, level string) (*zap.Logger, error) {
	lvl := parseLevel(level)
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local":
		c := zap.NewDevelopmentConfig()
		if level != "" {
			c.Level = zap.NewAtomicLevelAt(lvl)
		}
		return c.Build()
	default:
		c := zap.NewProductionConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return c.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

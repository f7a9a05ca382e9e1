// Package logger provides structured logging using Zap.
package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base *zap.Logger
	once sync.Once
)

type contextKey string

const loggerKey contextKey = "logger"

// Init initializes the global logger. For "production" it uses a JSON
// encoder; any other environment gets the human-readable console encoder.
func Init(env, level string) {
	once.Do(func() {
		var cfg zap.Config
		if env == "production" {
			cfg = zap.NewProductionConfig()
		} else {
			cfg = zap.NewDevelopmentConfig()
		}

		if lvl, err := zapcore.ParseLevel(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}

		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
}

// Get returns the global logger, initializing a development logger if
// Init has not been called.
func Get() *zap.Logger {
	if base == nil {
		Init("development", "info")
	}
	return base
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

// ToContext stores a logger in the context.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the request-scoped logger, or the global one.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return Get()
}

// With adds fields to the context logger and returns both the new logger
// and a context carrying it.
//
//	log, ctx := logger.With(ctx, zap.String("link_id", id))
func With(ctx context.Context, fields ...zap.Field) (*zap.Logger, context.Context) {
	l := FromContext(ctx).With(fields...)
	return l, ToContext(ctx, l)
}

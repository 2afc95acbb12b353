// Package dcontext carries a structured logger through a context.Context,
// so every pipeline stage logs with the fields of its caller without a
// package-level global.
package dcontext

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   = logrus.NewEntry(logrus.StandardLogger())
	defaultLoggerMu sync.RWMutex
)

// Logger is the leveled-logging interface every pipeline depends on.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	WithError(err error) *logrus.Entry
	WithField(key string, value any) *logrus.Entry
}

type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger attached to ctx, or the package default.
func GetLogger(ctx context.Context) Logger {
	if v := ctx.Value(loggerKey{}); v != nil {
		if l, ok := v.(Logger); ok {
			return l
		}
	}
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger overrides the logger used when no context logger is set.
func SetDefaultLogger(entry *logrus.Entry) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = entry
}

// Background returns a context carrying the default logger, for entry
// points that have no parent context (CLI commands).
func Background() context.Context {
	return WithLogger(context.Background(), defaultLogger)
}

// Package logger wraps a process-wide zap logger with a small package API.
package logger

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop().Sugar()
)

// Init configures the process logger. Format is "console" or "json"; level is
// any zap level name ("debug", "info", "warn", "error").
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	if format != "json" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Set(l.Sugar())
	return nil
}

// Set replaces the process logger. Useful for testing.
func Set(l *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// L returns the process logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() { _ = L().Sync() }

// Timed logs the start of task and returns a func that logs its duration.
//
//	defer logger.Timed(log, "embedding", "chunks", n)()
func Timed(l *zap.SugaredLogger, task string, kv ...any) func() {
	if l == nil {
		l = L()
	}
	start := time.Now()
	l.Debugw(task+" started", kv...)
	return func() {
		l.Infow(task+" completed", append(kv, "elapsed", time.Since(start).Round(time.Millisecond))...)
	}
}

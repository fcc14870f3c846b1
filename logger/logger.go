// Package logger is the logging facade of imgcodec.
//
// The actual logger is carried by the context (see CtxWithLogger); if the
// context has none, the go-belt default logger is used.
package logger

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

type Logger = logger.Logger
type Level = logger.Level

const (
	LevelUndefined = logger.LevelUndefined
	LevelFatal     = logger.LevelFatal
	LevelPanic     = logger.LevelPanic
	LevelError     = logger.LevelError
	LevelWarning   = logger.LevelWarning
	LevelInfo      = logger.LevelInfo
	LevelDebug     = logger.LevelDebug
	LevelTrace     = logger.LevelTrace
)

func SetDefault(defaultLogger func() Logger) {
	logger.Default = defaultLogger
}

func FromCtx(ctx context.Context) Logger {
	return logger.FromCtx(ctx)
}

func CtxWithLogger(ctx context.Context, l Logger) context.Context {
	return logger.CtxWithLogger(ctx, l)
}

func Debugf(ctx context.Context, format string, args ...any) {
	logger.Debugf(ctx, format, args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	logger.Infof(ctx, format, args...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	logger.Warnf(ctx, format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	logger.Errorf(ctx, format, args...)
}

// Panicf logs the message and panics.
func Panicf(ctx context.Context, format string, args ...any) {
	logger.Panicf(ctx, format, args...)
}

// Panic logs the values and panics.
func Panic(ctx context.Context, values ...any) {
	logger.Panic(ctx, values...)
}

func Logf(ctx context.Context, level Level, format string, args ...any) {
	logger.Logf(ctx, level, format, args...)
}

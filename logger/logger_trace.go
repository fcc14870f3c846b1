//go:build debug_trace
// +build debug_trace

package logger

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Tracef is only compiled in with the debug_trace build tag; the decode
// pipeline calls it on every stage of every sample.
func Tracef(ctx context.Context, format string, args ...any) {
	logger.Tracef(ctx, format, args...)
}

package internal

import (
	"context"

	"github.com/xaionaro-go/imgcodec/logger"
)

// Assert panics (through the logger, so the message is flushed first) if an
// internal invariant does not hold. It must never be used to validate user input.
func Assert(
	ctx context.Context,
	mustBeTrue bool,
	extraArgs ...any,
) {
	if mustBeTrue {
		return
	}

	logger.Panic(ctx, "assertion failed", extraArgs)
}

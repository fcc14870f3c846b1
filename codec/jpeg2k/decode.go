package jpeg2k

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/engine"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/xcontext"
)

// decode runs the engine on the leased stream of the thread and waits for
// the result to land in the scratch buffer.
func (d *Decoder) decode(
	ctx context.Context,
	dctx *decodeContext,
) (_err error) {
	logger.Tracef(ctx, "decode(%v)", dctx)
	defer func() { logger.Tracef(ctx, "/decode(%v): %v", dctx, _err) }()

	required := engine.NativeSize(dctx.bitstream.Info())
	if capacity := dctx.scratch.Size(); required > capacity {
		return ErrScratchTooSmall{Required: required, Capacity: capacity}
	}

	err := d.engine.Decode(ctx, dctx.decodeState, dctx.bitstream, dctx.scratch.Bytes()[:required], dctx.stream)
	if err != nil {
		// the engine may have enqueued a part of the work before failing
		drainStream(ctx, dctx.stream)
		return fmt.Errorf("%w: unable to submit the bitstream to %v: %w", ErrDevice, d.engine, err)
	}

	if err := dctx.decodeEvent.Record(ctx, dctx.stream); err != nil {
		drainStream(ctx, dctx.stream)
		return fmt.Errorf("%w: unable to record the decode event: %w", ErrDevice, err)
	}
	if err := dctx.decodeEvent.Wait(ctx); err != nil {
		drainStream(ctx, dctx.stream)
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}
	return nil
}

// drainStream waits for everything enqueued on s. It is used when the decode
// event could not be (re-)recorded after the work was enqueued: the next
// fence would not cover that work, so it must not outlive the sample.
func drainStream(ctx context.Context, s accel.Stream) {
	if err := s.Synchronize(xcontext.DetachDone(ctx)); err != nil {
		logger.Errorf(ctx, "unable to synchronize %v: %v", s, err)
	}
}

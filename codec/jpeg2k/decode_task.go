package jpeg2k

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/types"
)

// DecodeTask decodes the sample on the thread threadIdx; see codec.Decoder.
//
// The conversion into out is executed on stream; if stream is nil, it is
// executed on the stream leased by the thread. Either way the output is
// complete when DecodeTask returns.
func (d *Decoder) DecodeTask(
	ctx context.Context,
	threadIdx int,
	stream accel.Stream,
	out codec.SampleView,
	in *codec.ImageSource,
	params codec.DecodeParams,
	roi types.ROI,
) (_ret codec.DecodeResult) {
	ctx = belt.WithField(ctx, "thread_idx", threadIdx)
	logger.Tracef(ctx, "DecodeTask(%v, %v, %v)", in, out, params)
	defer func() { logger.Tracef(ctx, "/DecodeTask(%v, %v, %v): %v", in, out, params, _ret) }()

	err := d.decodeTask(ctx, threadIdx, stream, out, in, params)
	stage := StageUndefined
	if err != nil {
		var stageErr StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		logger.Debugf(ctx, "unable to decode %v: %v", in, err)
	}
	d.metrics.ObserveSample(stage.String(), err)
	if err != nil {
		return codec.DecodeResultFailure(err)
	}
	return codec.DecodeResultSuccess()
}

func (d *Decoder) decodeTask(
	ctx context.Context,
	threadIdx int,
	stream accel.Stream,
	out codec.SampleView,
	in *codec.ImageSource,
	params codec.DecodeParams,
) error {
	r, err := d.getPerThreadResources(ctx, threadIdx)
	if err != nil {
		return StageError{Stage: StageSetup, Err: err}
	}
	dctx := newDecodeContext(r)

	// nothing enqueued by the previous sample may still touch the scratch
	// buffer or the bitstream once we start overwriting them
	r.fence(ctx)

	err = d.runStage(ctx, StageParse, func() error {
		if err := d.parse(ctx, dctx, in, params); err != nil {
			return err
		}
		if !dctx.outputShape.Equal(out.Shape) {
			return fmt.Errorf("%w: expected %v, got %v", ErrOutputShapeMismatch, dctx.outputShape, out.Shape)
		}
		if required := dctx.outputShape.Volume(); int64(len(out.Data)) < required {
			return fmt.Errorf("%w: the view has %d bytes, while %d are required", ErrOutputShapeMismatch, len(out.Data), required)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := d.runStage(ctx, StageDecode, func() error {
		return d.decode(ctx, dctx)
	}); err != nil {
		return err
	}

	return d.runStage(ctx, StageConvert, func() error {
		return d.convert(ctx, dctx, stream, out, params)
	})
}

func (d *Decoder) runStage(
	ctx context.Context,
	stage Stage,
	fn func() error,
) error {
	startedAt := time.Now()
	err := fn()
	d.metrics.ObserveStage(stage.String(), time.Since(startedAt))
	if err != nil {
		return StageError{Stage: stage, Err: err}
	}
	return nil
}

package jpeg2k

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/internal"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/types"
)

// convert transforms the planar engine output in the scratch buffer into
// the interleaved requested layout in out. The work is enqueued on target
// (or on the thread stream if target is nil) and the decode event is
// re-recorded after it, so the next sample on this thread fences on it
// before overwriting the scratch buffer.
func (d *Decoder) convert(
	ctx context.Context,
	dctx *decodeContext,
	target accel.Stream,
	out codec.SampleView,
	params codec.DecodeParams,
) (_err error) {
	logger.Tracef(ctx, "convert(%v, %v, %v)", dctx, out, params)
	defer func() { logger.Tracef(ctx, "/convert(%v, %v, %v): %v", dctx, out, params, _err) }()

	internal.Assert(ctx, params.DType == types.DataTypeUInt8, params.DType)
	internal.Assert(ctx, out.DType == types.DataTypeUInt8, out.DType)

	height, width, channels := int(dctx.nativeShape[0]), int(dctx.nativeShape[1]), int(dctx.nativeShape[2])
	src := dctx.scratch.Bytes()[:height*width*channels]
	dst := out.Data
	format := params.Format

	if target == nil {
		target = dctx.stream
	}
	if target.DeviceID() != dctx.stream.DeviceID() {
		return fmt.Errorf("%w: %v belongs to device %v, while the decoder uses device %v", ErrDevice, target, target.DeviceID(), dctx.stream.DeviceID())
	}

	// the stream may be shared with other decoders, so the error is
	// reported to this sample only instead of making it sticky on the stream
	var convertErr error
	err := target.Enqueue(ctx, func(ctx context.Context) error {
		convertErr = convertPlanarToInterleaved(dst, src, height, width, channels, format)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: unable to enqueue the conversion: %w", ErrDevice, err)
	}
	if err := dctx.decodeEvent.Record(ctx, target); err != nil {
		drainStream(ctx, target)
		return fmt.Errorf("%w: unable to record the conversion event: %w", ErrDevice, err)
	}
	if err := dctx.decodeEvent.Wait(ctx); err != nil {
		drainStream(ctx, target)
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}
	return convertErr
}

// convertPlanarToInterleaved converts 8-bit CHW planes into HWC with the
// channel layout of format.
func convertPlanarToInterleaved(
	dst, src []byte,
	height, width, channels int,
	format types.ImageFormat,
) error {
	planeSize := height * width
	outChannels := format.Channels(channels)
	if len(src) < planeSize*channels {
		return fmt.Errorf("the source is too small: %d < %d", len(src), planeSize*channels)
	}
	if len(dst) < planeSize*outChannels {
		return fmt.Errorf("the destination is too small: %d < %d", len(dst), planeSize*outChannels)
	}
	plane := func(c int) []byte {
		return src[c*planeSize : (c+1)*planeSize]
	}

	switch format {
	case types.ImageFormatAny:
		for c := 0; c < channels; c++ {
			p := plane(c)
			for i, v := range p {
				dst[i*channels+c] = v
			}
		}
	case types.ImageFormatRGB, types.ImageFormatBGR:
		r, g, b := plane(0), plane(0), plane(0)
		if channels >= 3 {
			g, b = plane(1), plane(2)
		}
		if format == types.ImageFormatBGR {
			r, b = b, r
		}
		for i := 0; i < planeSize; i++ {
			dst[i*3+0] = r[i]
			dst[i*3+1] = g[i]
			dst[i*3+2] = b[i]
		}
	case types.ImageFormatGray:
		if channels < 3 {
			copy(dst, plane(0))
			break
		}
		r, g, b := plane(0), plane(1), plane(2)
		for i := 0; i < planeSize; i++ {
			// ITU-R BT.601
			dst[i] = uint8((299*uint32(r[i]) + 587*uint32(g[i]) + 114*uint32(b[i]) + 500) / 1000)
		}
	default:
		return fmt.Errorf("%w: unsupported output format %v", ErrUnsupported, format)
	}
	return nil
}

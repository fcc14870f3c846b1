package jpeg2k

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/header"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/types"
)

// parseImageInfo fills the bitstream with the header of the input and
// validates that the image is something the engine output can represent.
func parseImageInfo(
	ctx context.Context,
	bitstream *header.Stream,
	in *codec.ImageSource,
) (_err error) {
	logger.Tracef(ctx, "parseImageInfo(%v)", in)
	defer func() { logger.Tracef(ctx, "/parseImageInfo(%v): %v", in, _err) }()

	if in == nil || !in.Kind.Has(types.InputKindHostMemory) {
		return fmt.Errorf("%w: only host memory inputs are supported, got %v", ErrUnsupported, in)
	}
	if err := bitstream.Parse(in.Data); err != nil {
		return err
	}
	info := bitstream.Info()
	if logger.FromCtx(ctx).Level() >= logger.LevelTrace {
		logger.Logf(ctx, logger.LevelTrace, "parsed the header of %v: %s", in, spew.Sdump(info))
	}

	first := info.Components[0]
	for idx, c := range info.Components {
		if c.Precision != first.Precision {
			return fmt.Errorf("%w: component %d has precision %d, while component 0 has %d", ErrUnsupported, idx, c.Precision, first.Precision)
		}
		if c.Signed {
			return fmt.Errorf("%w: component %d is signed", ErrUnsupported, idx)
		}
		if c.SubsamplingX != 1 || c.SubsamplingY != 1 {
			return fmt.Errorf("%w: component %d is subsampled %dx%d", ErrUnsupported, idx, c.SubsamplingX, c.SubsamplingY)
		}
	}
	if first.Precision > 8 {
		return fmt.Errorf("%w: %d bits per pixel, only up to 8 are supported", ErrUnsupported, first.Precision)
	}
	return nil
}

func nativeShape(info header.Info) types.Shape {
	return types.Shape{int64(info.Height), int64(info.Width), int64(len(info.Components))}
}

func (d *Decoder) parse(
	ctx context.Context,
	dctx *decodeContext,
	in *codec.ImageSource,
	params codec.DecodeParams,
) error {
	if err := parseImageInfo(ctx, dctx.bitstream, in); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	info := dctx.bitstream.Info()
	dctx.bitsPerPixel = info.Components[0].Precision
	dctx.pixelType = types.DataTypeUInt8
	dctx.nativeShape = nativeShape(info)
	dctx.outputShape = codec.OutputShape(codec.ImageInfo{
		Shape:    dctx.nativeShape,
		BitDepth: int(dctx.bitsPerPixel),
	}, params)
	return nil
}

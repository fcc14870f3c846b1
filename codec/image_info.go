package codec

import (
	"context"

	"github.com/xaionaro-go/imgcodec/types"
)

// ImageInfo is what can be learned about an image without decoding it.
type ImageInfo struct {
	// Shape is the native shape: {height, width, channels}.
	Shape    types.Shape
	BitDepth int
}

// ImageParser is used by dispatchers to pre-allocate the outputs.
type ImageParser interface {
	CanParse(ctx context.Context, in *ImageSource) bool
	GetInfo(ctx context.Context, in *ImageSource) (ImageInfo, error)
}

// OutputShape returns the shape of the decoded sample for the given request.
func OutputShape(info ImageInfo, params DecodeParams) types.Shape {
	if len(info.Shape) != 3 {
		return info.Shape
	}
	return types.Shape{
		info.Shape[0],
		info.Shape[1],
		int64(params.Format.Channels(int(info.Shape[2]))),
	}
}

package jpeg2k

import (
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/engine"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/header"
	"github.com/xaionaro-go/imgcodec/types"
)

// decodeContext is the state of a single sample. It borrows the resources
// of the thread and must not outlive the DecodeTask call.
type decodeContext struct {
	bitsPerPixel uint8
	pixelType    types.DataType

	// nativeShape is {height, width, components}, the layout of the
	// engine output is planar (CHW) though.
	nativeShape types.Shape
	outputShape types.Shape

	decodeState engine.DecodeState
	bitstream   *header.Stream
	decodeEvent accel.Event
	stream      accel.Stream
	scratch     accel.Buffer
}

func newDecodeContext(r *perThreadResources) *decodeContext {
	return &decodeContext{
		decodeState: r.decodeState,
		bitstream:   r.bitstream,
		decodeEvent: r.decodeEvent,
		stream:      r.stream.Stream(),
		scratch:     r.scratch,
	}
}

func (c *decodeContext) String() string {
	return fmt.Sprintf("decodeContext(bpp:%d, %s, %v -> %v)", c.bitsPerPixel, c.pixelType, c.nativeShape, c.outputShape)
}

package codec

import (
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/types"
)

// SampleView is a pre-allocated destination of a decoded sample.
// The data is laid out densely in Shape order (HWC for images).
type SampleView struct {
	Data  []byte
	Shape types.Shape
	DType types.DataType
}

func NewSampleView(buf accel.Buffer, shape types.Shape, dtype types.DataType) (SampleView, error) {
	required := uint64(shape.Volume()) * uint64(dtype.Size())
	if buf.Size() < required {
		return SampleView{}, fmt.Errorf("the buffer is too small for %v of %s: %d < %d", shape, dtype, buf.Size(), required)
	}
	return SampleView{
		Data:  buf.Bytes()[:required],
		Shape: shape,
		DType: dtype,
	}, nil
}

func (v SampleView) String() string {
	return fmt.Sprintf("SampleView(%v, %s)", v.Shape, v.DType)
}

// Package codec defines the image decoder backends contract and the generic
// plumbing around it: selecting a backend for an input and dispatching a
// batch of samples to a backend over a thread pool.
package codec

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/types"
)

// Decoder is an instance of a decoder backend bound to a device.
type Decoder interface {
	fmt.Stringer
	types.Closer

	// CanDecode tells if the backend is able to serve the request at all.
	// It must be side-effect-free and safe for concurrent use.
	CanDecode(ctx context.Context, in *ImageSource, params DecodeParams, roi types.ROI) bool

	// DecodeTask decodes a single sample on the worker thread threadIdx.
	// CanDecode must have returned true for the same arguments. At most one
	// DecodeTask may run per threadIdx at a time.
	DecodeTask(
		ctx context.Context,
		threadIdx int,
		stream accel.Stream,
		out SampleView,
		in *ImageSource,
		params DecodeParams,
		roi types.ROI,
	) DecodeResult

	// SetParam sets a backend-specific parameter; unknown names are ignored.
	SetParam(ctx context.Context, name string, value any) error

	// GetParam returns a backend-specific parameter; ok is false for unknown names.
	GetParam(ctx context.Context, name string) (value any, ok bool)
}

type DecodeParams struct {
	DType  types.DataType
	Format types.ImageFormat
}

func (p DecodeParams) String() string {
	return fmt.Sprintf("DecodeParams(%s, %s)", p.DType, p.Format)
}

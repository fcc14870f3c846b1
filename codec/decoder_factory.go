package codec

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/types"
)

type Properties struct {
	SupportedInputKinds types.InputKind

	// SupportsPartialDecoding tells if a region of interest can be decoded
	// without decoding the whole image.
	SupportsPartialDecoding bool

	// Fallback backends are tried only after all the other ones declined.
	Fallback bool
}

// ThreadPool is the worker pool the decoders are dispatched on
// (see package threadpool).
type ThreadPool interface {
	NumThreads() int
	Submit(ctx context.Context, task func(ctx context.Context, threadIdx int)) error
	Wait(ctx context.Context)
}

type DecoderFactory interface {
	fmt.Stringer

	Properties() Properties
	IsSupported(deviceID types.DeviceID) bool
	NewDecoder(ctx context.Context, deviceID types.DeviceID, threadPool ThreadPool) (Decoder, error)
}

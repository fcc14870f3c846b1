// Package engine is the boundary to the JPEG2000 decoding engine: the
// component that runs the actual codec math on the accelerator.
package engine

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/header"
	"github.com/xaionaro-go/imgcodec/types"
)

// Handle is the shared, per-device engine context. It must be safe for
// concurrent use; the decode states it creates are not.
type Handle interface {
	fmt.Stringer
	types.Closer

	NewDecodeState(ctx context.Context, cfg DecodeStateConfig) (DecodeState, error)

	// Decode enqueues decoding of the parsed bitstream on the stream s. The
	// result is written to dst in the native layout: one plane per
	// component, each plane is height*width 8-bit samples. Decode returns as
	// soon as the work is enqueued; errors of the work itself are reported
	// through the stream (see accel.Event.Wait). Neither dst nor the
	// bitstream may be touched before the enqueued work completes.
	Decode(
		ctx context.Context,
		state DecodeState,
		bitstream *header.Stream,
		dst []byte,
		s accel.Stream,
	) error
}

type DecodeStateConfig struct {
	// HostMemoryPadding is the initial size of the pinned staging memory
	// the bitstream is uploaded through.
	HostMemoryPadding uint64
}

// DecodeState is a per-thread engine object; it is owned by a single thread.
type DecodeState interface {
	types.Closer
}

// NativeSize returns the size of dst required to decode the image.
func NativeSize(info header.Info) uint64 {
	return uint64(info.Width) * uint64(info.Height) * uint64(len(info.Components))
}

// Package enginetest provides a deterministic engine to test decoders with.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/engine"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/header"
	"go.uber.org/atomic"
)

var ErrInjected = errors.New("injected failure")

// Pixel is the value Fake writes for component c at row y, column x.
func Pixel(c, y, x int) byte {
	return byte(c*53 + y*7 + x*3 + 1)
}

// Fake writes Pixel values instead of decoding anything. Its failures are
// configurable through the exported fields, which must be set before use.
type Fake struct {
	// FailNewState makes NewDecodeState fail.
	FailNewState bool
	// FailDecode makes the enqueued work fail for bitstreams of this width.
	FailDecodeWidth uint32
	// Gate, if not nil, is awaited by every enqueued decode.
	Gate chan struct{}

	DecodeCalls atomic.Uint64
	ClosedCount atomic.Uint64

	locker     sync.Mutex
	liveStates map[*fakeState]struct{}
	isClosed   bool
}

var _ engine.Handle = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		liveStates: map[*fakeState]struct{}{},
	}
}

func (f *Fake) String() string {
	return "FakeEngine"
}

func (f *Fake) Close(ctx context.Context) error {
	f.locker.Lock()
	defer f.locker.Unlock()
	f.isClosed = true
	f.ClosedCount.Inc()
	if len(f.liveStates) != 0 {
		return fmt.Errorf("%d decode states are still alive", len(f.liveStates))
	}
	return nil
}

func (f *Fake) IsClosed() bool {
	f.locker.Lock()
	defer f.locker.Unlock()
	return f.isClosed
}

func (f *Fake) LiveStates() int {
	f.locker.Lock()
	defer f.locker.Unlock()
	return len(f.liveStates)
}

type fakeState struct {
	fake *Fake
}

func (st *fakeState) Close(ctx context.Context) error {
	st.fake.locker.Lock()
	defer st.fake.locker.Unlock()
	delete(st.fake.liveStates, st)
	return nil
}

func (f *Fake) NewDecodeState(
	ctx context.Context,
	cfg engine.DecodeStateConfig,
) (engine.DecodeState, error) {
	if f.FailNewState {
		return nil, ErrInjected
	}
	f.locker.Lock()
	defer f.locker.Unlock()
	if f.isClosed {
		return nil, accel.ErrClosed
	}
	st := &fakeState{fake: f}
	f.liveStates[st] = struct{}{}
	return st, nil
}

func (f *Fake) Decode(
	ctx context.Context,
	state engine.DecodeState,
	bitstream *header.Stream,
	dst []byte,
	s accel.Stream,
) error {
	f.DecodeCalls.Inc()
	if _, ok := state.(*fakeState); !ok {
		return fmt.Errorf("foreign decode state %T", state)
	}
	info := bitstream.Info()
	if uint64(len(dst)) < engine.NativeSize(info) {
		return fmt.Errorf("the destination is too small: %d < %d", len(dst), engine.NativeSize(info))
	}
	width, height, numComponents := int(info.Width), int(info.Height), len(info.Components)
	fail := f.FailDecodeWidth != 0 && f.FailDecodeWidth == info.Width
	gate := f.Gate
	return s.Enqueue(ctx, func(ctx context.Context) error {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if fail {
			return ErrInjected
		}
		for c := 0; c < numComponents; c++ {
			plane := dst[c*width*height:]
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					plane[y*width+x] = Pixel(c, y, x)
				}
			}
		}
		return nil
	})
}

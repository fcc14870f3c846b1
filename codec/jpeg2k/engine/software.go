package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	jpeg2000 "github.com/mrjoshuak/go-jpeg2000"
	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/header"
	"github.com/xaionaro-go/imgcodec/logger"
	"go.uber.org/atomic"
)

var (
	ErrDimensionsMismatch = errors.New("the decoded image does not match the header")
	ErrUnsupportedLayout  = errors.New("unsupported component layout")
)

// Software runs the pure Go github.com/mrjoshuak/go-jpeg2000 codec as the
// engine kernel on the accelerator streams.
type Software struct {
	deviceAllocator accel.Allocator
	pinnedAllocator accel.Allocator
	liveStates      atomic.Int64
	isClosed        atomic.Bool
}

var _ Handle = (*Software)(nil)

func NewSoftware(
	ctx context.Context,
	deviceAllocator accel.Allocator,
	pinnedAllocator accel.Allocator,
) (*Software, error) {
	if deviceAllocator == nil || pinnedAllocator == nil {
		return nil, fmt.Errorf("both allocators are required")
	}
	logger.Debugf(ctx, "initialized the software JPEG2000 engine (allocators: %v, %v)", deviceAllocator, pinnedAllocator)
	return &Software{
		deviceAllocator: deviceAllocator,
		pinnedAllocator: pinnedAllocator,
	}, nil
}

func (e *Software) String() string {
	return "SoftwareJPEG2000Engine"
}

// LiveStates returns the amount of decode states that are not closed yet.
func (e *Software) LiveStates() int64 {
	return e.liveStates.Load()
}

func (e *Software) Close(ctx context.Context) error {
	if !e.isClosed.CompareAndSwap(false, true) {
		return nil
	}
	if n := e.liveStates.Load(); n != 0 {
		return fmt.Errorf("%d decode states are still alive", n)
	}
	return nil
}

type softwareDecodeState struct {
	engine  *Software
	padding uint64
	staging accel.Buffer
}

func (e *Software) NewDecodeState(
	ctx context.Context,
	cfg DecodeStateConfig,
) (DecodeState, error) {
	if e.isClosed.Load() {
		return nil, fmt.Errorf("%v: %w", e, accel.ErrClosed)
	}
	st := &softwareDecodeState{
		engine:  e,
		padding: cfg.HostMemoryPadding,
	}
	if cfg.HostMemoryPadding > 0 {
		buf, err := e.pinnedAllocator.Allocate(ctx, cfg.HostMemoryPadding)
		if err != nil {
			return nil, fmt.Errorf("unable to allocate %d bytes of pinned staging memory: %w", cfg.HostMemoryPadding, err)
		}
		st.staging = buf
	}
	e.liveStates.Inc()
	return st, nil
}

func (st *softwareDecodeState) Close(ctx context.Context) error {
	if st.engine == nil {
		return nil
	}
	var err error
	if st.staging != nil {
		err = st.staging.Close(ctx)
		st.staging = nil
	}
	st.engine.liveStates.Dec()
	st.engine = nil
	return err
}

// upload copies the bitstream into the pinned staging memory, growing it
// if needed.
func (st *softwareDecodeState) upload(ctx context.Context, bitstream []byte) ([]byte, error) {
	size := uint64(len(bitstream))
	if st.staging == nil || st.staging.Size() < size {
		if st.staging != nil {
			if err := st.staging.Close(ctx); err != nil {
				return nil, fmt.Errorf("unable to free the staging memory: %w", err)
			}
			st.staging = nil
		}
		buf, err := st.engine.pinnedAllocator.Allocate(ctx, size+st.padding)
		if err != nil {
			return nil, fmt.Errorf("unable to allocate %d bytes of pinned staging memory: %w", size+st.padding, err)
		}
		st.staging = buf
	}
	staged := st.staging.Bytes()[:size]
	copy(staged, bitstream)
	return staged, nil
}

func (e *Software) Decode(
	ctx context.Context,
	state DecodeState,
	bitstream *header.Stream,
	dst []byte,
	s accel.Stream,
) (_err error) {
	logger.Tracef(ctx, "Decode")
	defer func() { logger.Tracef(ctx, "/Decode: %v", _err) }()

	st, ok := state.(*softwareDecodeState)
	if !ok || st.engine != e {
		return fmt.Errorf("the decode state %T does not belong to %v", state, e)
	}
	info := bitstream.Info()
	if required := NativeSize(info); uint64(len(dst)) < required {
		return fmt.Errorf("the destination is too small: %d < %d", len(dst), required)
	}

	staged, err := st.upload(ctx, bitstream.Codestream())
	if err != nil {
		return err
	}

	width, height, numComponents := int(info.Width), int(info.Height), len(info.Components)
	return s.Enqueue(ctx, func(ctx context.Context) error {
		img, err := jpeg2000.Decode(bytes.NewReader(staged))
		if err != nil {
			return fmt.Errorf("unable to decode the codestream: %w", err)
		}
		return writePlanes(dst, img, width, height, numComponents)
	})
}

func writePlanes(
	dst []byte,
	img image.Image,
	width, height, numComponents int,
) error {
	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return fmt.Errorf("%dx%d vs %dx%d: %w", bounds.Dx(), bounds.Dy(), width, height, ErrDimensionsMismatch)
	}
	planeSize := width * height

	if gray, ok := img.(*image.Gray); ok && numComponents == 1 {
		for y := 0; y < height; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
			copy(dst[y*width:], row)
		}
		return nil
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			idx := y*width + x
			switch numComponents {
			case 1:
				dst[idx] = color.GrayModel.Convert(c).(color.Gray).Y
			case 2:
				px := color.NRGBAModel.Convert(c).(color.NRGBA)
				dst[idx] = color.GrayModel.Convert(c).(color.Gray).Y
				dst[planeSize+idx] = px.A
			case 3, 4:
				px := color.NRGBAModel.Convert(c).(color.NRGBA)
				dst[idx] = px.R
				dst[planeSize+idx] = px.G
				dst[2*planeSize+idx] = px.B
				if numComponents == 4 {
					dst[3*planeSize+idx] = px.A
				}
			default:
				return fmt.Errorf("%d components: %w", numComponents, ErrUnsupportedLayout)
			}
		}
	}
	return nil
}

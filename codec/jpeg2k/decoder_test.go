package jpeg2k

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/accel/host"
	"github.com/xaionaro-go/imgcodec/accel/streampool"
	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/engine/enginetest"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/header/headertest"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/types"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEnv struct {
	ctx    context.Context
	device *host.Device
	pool   *streampool.Pool
	engine *enginetest.Fake
}

func newTestEnv(t *testing.T, cfg host.Config) *testEnv {
	l := logrus.Default().WithLevel(logger.LevelDebug)
	ctx := logger.CtxWithLogger(context.Background(), l)

	dev, err := host.NewDevice(ctx, 0, cfg)
	require.NoError(t, err)
	env := &testEnv{
		ctx:    ctx,
		device: dev,
		pool:   streampool.New(),
		engine: enginetest.NewFake(),
	}
	t.Cleanup(func() {
		require.NoError(t, env.pool.Close(ctx))
		require.NoError(t, dev.Close(ctx))
		belt.Flush(ctx)
	})
	return env
}

func (env *testEnv) newDecoder(t *testing.T, numThreads int, opts ...Option) *Decoder {
	opts = append([]Option{
		OptionEngine{Engine: env.engine},
		OptionStreamPool{Pool: env.pool},
	}, opts...)
	d, err := New(env.ctx, env.device, numThreads, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close(env.ctx)) })
	return d
}

func (env *testEnv) deviceLiveBytes() uint64 {
	return env.device.DeviceAllocator().(*host.Allocator).LiveBytes()
}

func codestream(width, height uint32, numComponents int) *codec.ImageSource {
	data := headertest.Codestream(width, height, headertest.Components(numComponents, 8), []byte{0xFF, 0xD9})
	return codec.ImageSourceFromHostMemory(data, fmt.Sprintf("%dx%dx%d", width, height, numComponents))
}

func newOutput(shape types.Shape) codec.SampleView {
	return codec.SampleView{
		Data:  make([]byte, shape.Volume()),
		Shape: shape,
		DType: types.DataTypeUInt8,
	}
}

func rgbParams(format types.ImageFormat) codec.DecodeParams {
	return codec.DecodeParams{DType: types.DataTypeUInt8, Format: format}
}

func expectedOutput(height, width, channels int, format types.ImageFormat) []byte {
	pixel := func(c, y, x int) byte {
		if c >= channels {
			c = 0
		}
		return enginetest.Pixel(c, y, x)
	}
	outChannels := format.Channels(channels)
	result := make([]byte, 0, height*width*outChannels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch format {
			case types.ImageFormatAny:
				for c := 0; c < channels; c++ {
					result = append(result, pixel(c, y, x))
				}
			case types.ImageFormatRGB:
				if channels < 3 {
					result = append(result, pixel(0, y, x), pixel(0, y, x), pixel(0, y, x))
				} else {
					result = append(result, pixel(0, y, x), pixel(1, y, x), pixel(2, y, x))
				}
			case types.ImageFormatBGR:
				if channels < 3 {
					result = append(result, pixel(0, y, x), pixel(0, y, x), pixel(0, y, x))
				} else {
					result = append(result, pixel(2, y, x), pixel(1, y, x), pixel(0, y, x))
				}
			case types.ImageFormatGray:
				if channels < 3 {
					result = append(result, pixel(0, y, x))
				} else {
					r, g, b := uint32(pixel(0, y, x)), uint32(pixel(1, y, x)), uint32(pixel(2, y, x))
					result = append(result, uint8((299*r+587*g+114*b+500)/1000))
				}
			}
		}
	}
	return result
}

func TestCanDecode(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)
	in := codestream(4, 4, 3)

	for dtype := types.DataTypeNone; dtype < types.EndOfDataType; dtype++ {
		for _, roi := range []types.ROI{{}, {Begin: []int{0, 0}, End: []int{2, 2}}} {
			t.Run(fmt.Sprintf("%s/%v", dtype, roi), func(t *testing.T) {
				expected := dtype == types.DataTypeUInt8 && !roi.IsSet()
				require.Equal(t, expected, d.CanDecode(env.ctx, in, codec.DecodeParams{DType: dtype}, roi))
			})
		}
	}
}

func TestDecodeTaskFormats(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)

	for _, numComponents := range []int{1, 2, 3, 4} {
		for format := types.ImageFormatAny; format < types.EndOfImageFormat; format++ {
			t.Run(fmt.Sprintf("%dch/%s", numComponents, format), func(t *testing.T) {
				in := codestream(5, 3, numComponents)
				out := newOutput(types.Shape{3, 5, int64(format.Channels(numComponents))})
				res := d.DecodeTask(env.ctx, 0, nil, out, in, rgbParams(format), types.ROI{})
				require.True(t, res.Success, res.Err)
				require.Equal(t, expectedOutput(3, 5, numComponents, format), out.Data)
			})
		}
	}
}

func TestDecodeTaskOnCallerStream(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)

	s, err := env.device.NewStream(env.ctx)
	require.NoError(t, err)
	defer s.Close(env.ctx)

	out := newOutput(types.Shape{4, 4, 3})
	res := d.DecodeTask(env.ctx, 0, s, out, codestream(4, 4, 3), rgbParams(types.ImageFormatRGB), types.ROI{})
	require.True(t, res.Success, res.Err)
	require.Equal(t, expectedOutput(4, 4, 3, types.ImageFormatRGB), out.Data)
}

func TestDecodeTaskRejectsStreamOfAnotherDevice(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)

	otherDevice, err := host.NewDevice(env.ctx, 1, host.Config{})
	require.NoError(t, err)
	defer otherDevice.Close(env.ctx)
	s, err := otherDevice.NewStream(env.ctx)
	require.NoError(t, err)
	defer s.Close(env.ctx)

	gate := make(chan struct{})
	require.NoError(t, s.Enqueue(env.ctx, func(ctx context.Context) error {
		<-gate
		return nil
	}))

	out := newOutput(types.Shape{2, 1, 3})
	res := d.DecodeTask(env.ctx, 0, s, out, codestream(1, 2, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrDevice)
	var stageErr StageError
	require.ErrorAs(t, res.Err, &stageErr)
	require.Equal(t, StageConvert, stageErr.Stage)

	next := newOutput(types.Shape{2, 1, 3})
	res = d.DecodeTask(env.ctx, 0, nil, next, codestream(1, 2, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.True(t, res.Success, res.Err)

	close(gate)
	require.NoError(t, s.Synchronize(env.ctx))
	require.Equal(t, make([]byte, 6), out.Data, "nothing may write into the output of a failed sample")
	require.Equal(t, expectedOutput(2, 1, 3, types.ImageFormatAny), next.Data)
}

// unrecordableStream is accepted for enqueueing, but events cannot be
// recorded on it.
type unrecordableStream struct {
	accel.Stream
}

func TestDecodeTaskWaitsForTheConversionIfTheEventFails(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)

	s, err := env.device.NewStream(env.ctx)
	require.NoError(t, err)
	defer s.Close(env.ctx)

	gate := make(chan struct{})
	require.NoError(t, s.Enqueue(env.ctx, func(ctx context.Context) error {
		<-gate
		return nil
	}))

	out := newOutput(types.Shape{4, 4, 3})
	done := make(chan codec.DecodeResult, 1)
	go func() {
		done <- d.DecodeTask(env.ctx, 0, unrecordableStream{Stream: s}, out, codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	}()
	require.Never(t, func() bool { return len(done) > 0 }, 100*time.Millisecond, 10*time.Millisecond,
		"DecodeTask returned while its conversion was still pending")

	close(gate)
	res := <-done
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrDevice)
	require.ErrorIs(t, res.Err, accel.ErrForeignObject)
	require.Equal(t, expectedOutput(4, 4, 3, types.ImageFormatAny), out.Data)
}

func TestDecodeTaskIsDeterministic(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 2)
	in := codestream(6, 4, 3)

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		out := newOutput(types.Shape{4, 6, 3})
		res := d.DecodeTask(env.ctx, 1, nil, out, in, rgbParams(types.ImageFormatAny), types.ROI{})
		require.True(t, res.Success, res.Err)
		outputs = append(outputs, out.Data)
	}
	require.Equal(t, outputs[0], outputs[1])
	require.EqualValues(t, 1, env.engine.LiveStates(), "only the used thread has resources")
}

func TestDecodeTaskRecoversAfterMalformedInput(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)
	valid := codestream(4, 4, 3)

	malformed := []*codec.ImageSource{
		codec.ImageSourceFromHostMemory(nil, "empty"),
		codec.ImageSourceFromHostMemory([]byte("not an image at all"), "garbage"),
		codec.ImageSourceFromHostMemory(valid.Data[:20], "truncated"),
		codec.ImageSourceFromHostMemory(headertest.Codestream(4, 4, headertest.Components(3, 12), nil), "12bit"),
		codec.ImageSourceFromHostMemory(headertest.Codestream(4, 4, []headertest.Component{{Precision: 8, Signed: true}}, nil), "signed"),
		codec.ImageSourceFromHostMemory(headertest.Codestream(4, 4, []headertest.Component{{Precision: 8}, {Precision: 8, SubsamplingX: 2, SubsamplingY: 2}}, nil), "subsampled"),
		codec.ImageSourceFromHostMemory(headertest.Codestream(4, 4, []headertest.Component{{Precision: 8}, {Precision: 7}}, nil), "mixed_precision"),
		codec.ImageSourceFromHostMemory(headertest.Codestream(1<<31, 1<<31, headertest.Components(4, 8), nil), "overflowing_size"),
		{Kind: types.InputKindFilename, Data: valid.Data, Name: "filename"},
	}
	for _, in := range malformed {
		t.Run(in.Name, func(t *testing.T) {
			res := d.DecodeTask(env.ctx, 0, nil, newOutput(types.Shape{4, 4, 3}), in, rgbParams(types.ImageFormatAny), types.ROI{})
			require.False(t, res.Success)
			require.ErrorIs(t, res.Err, ErrParse)
			var stageErr StageError
			require.ErrorAs(t, res.Err, &stageErr)
			require.Equal(t, StageParse, stageErr.Stage)

			out := newOutput(types.Shape{4, 4, 3})
			res = d.DecodeTask(env.ctx, 0, nil, out, valid, rgbParams(types.ImageFormatAny), types.ROI{})
			require.True(t, res.Success, res.Err)
			require.Equal(t, expectedOutput(4, 4, 3, types.ImageFormatAny), out.Data)
		})
	}
}

func TestDecodeTaskRecoversAfterDeviceFailure(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	env.engine.FailDecodeWidth = 7
	d := env.newDecoder(t, 1)

	res := d.DecodeTask(env.ctx, 0, nil, newOutput(types.Shape{2, 7, 3}), codestream(7, 2, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrDevice)
	require.ErrorIs(t, res.Err, enginetest.ErrInjected)
	var stageErr StageError
	require.ErrorAs(t, res.Err, &stageErr)
	require.Equal(t, StageDecode, stageErr.Stage)

	out := newOutput(types.Shape{2, 6, 3})
	res = d.DecodeTask(env.ctx, 0, nil, out, codestream(6, 2, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.True(t, res.Success, res.Err)
	require.Equal(t, expectedOutput(2, 6, 3, types.ImageFormatAny), out.Data)
}

func TestDecodeTaskScratchTooSmall(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)
	require.NoError(t, d.SetParam(env.ctx, ParamDeviceMemoryPadding, 48))

	res := d.DecodeTask(env.ctx, 0, nil, newOutput(types.Shape{4, 5, 3}), codestream(5, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.False(t, res.Success)
	var tooSmall ErrScratchTooSmall
	require.ErrorAs(t, res.Err, &tooSmall)
	require.Equal(t, ErrScratchTooSmall{Required: 60, Capacity: 48}, tooSmall)

	// the entry is not grown, but is still usable for what fits
	out := newOutput(types.Shape{4, 4, 3})
	res = d.DecodeTask(env.ctx, 0, nil, out, codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.True(t, res.Success, res.Err)
	require.EqualValues(t, 48, d.perThread[0].scratch.Size())
}

func TestDecodeTaskOutputShapeMismatch(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)

	for _, out := range []codec.SampleView{
		newOutput(types.Shape{4, 4, 1}),
		newOutput(types.Shape{4, 4}),
		{Data: make([]byte, 3), Shape: types.Shape{4, 4, 3}, DType: types.DataTypeUInt8},
	} {
		res := d.DecodeTask(env.ctx, 0, nil, out, codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
		require.ErrorIs(t, res.Err, ErrOutputShapeMismatch)
	}
}

func TestDecodeTaskInvalidThreadIndex(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 2)

	for _, threadIdx := range []int{-1, 2, 100} {
		res := d.DecodeTask(env.ctx, threadIdx, nil, newOutput(types.Shape{4, 4, 3}), codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
		var invalidIdx ErrInvalidThreadIndex
		require.ErrorAs(t, res.Err, &invalidIdx)
		require.Equal(t, ErrInvalidThreadIndex{ThreadIdx: threadIdx, NumThreads: 2}, invalidIdx)
	}
	require.Zero(t, env.engine.LiveStates())
}

func TestParamsAffectOnlyNewEntries(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 3)
	in := codestream(4, 4, 3)
	decode := func(threadIdx int) {
		res := d.DecodeTask(env.ctx, threadIdx, nil, newOutput(types.Shape{4, 4, 3}), in, rgbParams(types.ImageFormatAny), types.ROI{})
		require.True(t, res.Success, res.Err)
	}

	v, ok := d.GetParam(env.ctx, ParamDeviceMemoryPadding)
	require.True(t, ok)
	require.Equal(t, uint64(DefaultDeviceMemoryPadding), v)

	decode(0)
	require.EqualValues(t, DefaultDeviceMemoryPadding, d.perThread[0].scratch.Size())

	require.NoError(t, d.SetParam(env.ctx, ParamDeviceMemoryPadding, uint64(1024)))
	decode(0)
	decode(1)
	require.EqualValues(t, DefaultDeviceMemoryPadding, d.perThread[0].scratch.Size(), "existing entries are never resized")
	require.EqualValues(t, 1024, d.perThread[1].scratch.Size())

	require.NoError(t, d.SetParam(env.ctx, ParamDeviceMemoryPadding, types.ByteSize(4096)))
	decode(2)
	require.EqualValues(t, 4096, d.perThread[2].scratch.Size())
	require.EqualValues(t, DefaultDeviceMemoryPadding+1024+4096, env.deviceLiveBytes())

	v, ok = d.GetParam(env.ctx, ParamDeviceMemoryPadding)
	require.True(t, ok)
	require.Equal(t, uint64(4096), v)
}

func TestUnknownParams(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)

	v, ok := d.GetParam(env.ctx, "nvjpeg_something_else")
	require.False(t, ok)
	require.Nil(t, v)

	require.NoError(t, d.SetParam(env.ctx, "nvjpeg_something_else", "whatever"))
	require.NoError(t, d.SetParam(env.ctx, "", struct{}{}))

	for _, name := range []string{ParamDeviceMemoryPadding, ParamHostMemoryPadding} {
		v, ok := d.GetParam(env.ctx, name)
		require.True(t, ok)
		require.Equal(t, uint64(256), v)
	}
}

func TestSetParamInvalidValue(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, 1)

	require.Error(t, d.SetParam(env.ctx, ParamHostMemoryPadding, -1))
	require.Error(t, d.SetParam(env.ctx, ParamHostMemoryPadding, 1.5))
	require.Error(t, d.SetParam(env.ctx, ParamHostMemoryPadding, "lots"))
	v, _ := d.GetParam(env.ctx, ParamHostMemoryPadding)
	require.Equal(t, uint64(256), v)

	require.NoError(t, d.SetParam(env.ctx, ParamHostMemoryPadding, "1 KiB"))
	v, _ = d.GetParam(env.ctx, ParamHostMemoryPadding)
	require.Equal(t, uint64(1024), v)
}

func TestConcurrentDecodesOnDistinctThreads(t *testing.T) {
	const numThreads = 8
	env := newTestEnv(t, host.Config{})
	d := env.newDecoder(t, numThreads)

	type job struct {
		in     *codec.ImageSource
		out    codec.SampleView
		width  int
		height int
	}
	jobs := make([]job, numThreads)
	for i := range jobs {
		width, height := 2+i, 3+i%3
		jobs[i] = job{
			in:     codestream(uint32(width), uint32(height), 3),
			out:    newOutput(types.Shape{int64(height), int64(width), 3}),
			width:  width,
			height: height,
		}
	}
	require.NoError(t, d.SetParam(env.ctx, ParamDeviceMemoryPadding, 1024))

	for round := 0; round < 5; round++ {
		var wg sync.WaitGroup
		for threadIdx := range jobs {
			wg.Add(1)
			go func(threadIdx int) {
				defer wg.Done()
				j := jobs[threadIdx]
				res := d.DecodeTask(env.ctx, threadIdx, nil, j.out, j.in, rgbParams(types.ImageFormatBGR), types.ROI{})
				assert.True(t, res.Success, res.Err)
			}(threadIdx)
		}
		wg.Wait()
		for _, j := range jobs {
			require.Equal(t, expectedOutput(j.height, j.width, 3, types.ImageFormatBGR), j.out.Data)
		}
	}
	require.Equal(t, numThreads, env.engine.LiveStates())
}

func TestDecodeWaitsForTheDevice(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	env.engine.Gate = make(chan struct{})
	d := env.newDecoder(t, 1)

	out := newOutput(types.Shape{4, 4, 3})
	done := make(chan codec.DecodeResult)
	go func() {
		done <- d.DecodeTask(env.ctx, 0, nil, out, codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	}()

	select {
	case <-done:
		t.Fatal("DecodeTask returned before the device finished decoding")
	default:
	}
	close(env.engine.Gate)
	res := <-done
	require.True(t, res.Success, res.Err)
	require.Equal(t, expectedOutput(4, 4, 3, types.ImageFormatAny), out.Data)
}

func TestResourceConstructionFailure(t *testing.T) {
	env := newTestEnv(t, host.Config{DeviceMemoryLimit: 300})
	d := env.newDecoder(t, 2)

	err := d.Warmup(env.ctx)
	var oom accel.ErrOutOfMemory
	require.ErrorAs(t, err, &oom)
	require.Equal(t, 1, env.engine.LiveStates(), "the partially created entry must be released")

	res := d.DecodeTask(env.ctx, 1, nil, newOutput(types.Shape{4, 4, 3}), codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.False(t, res.Success)
	var stageErr StageError
	require.ErrorAs(t, res.Err, &stageErr)
	require.Equal(t, StageSetup, stageErr.Stage)

	res = d.DecodeTask(env.ctx, 0, nil, newOutput(types.Shape{4, 4, 3}), codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.True(t, res.Success, res.Err)
}

func TestDecodeStateConstructionFailure(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	env.engine.FailNewState = true
	d := env.newDecoder(t, 1)

	res := d.DecodeTask(env.ctx, 0, nil, newOutput(types.Shape{4, 4, 3}), codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.ErrorIs(t, res.Err, enginetest.ErrInjected)
	require.Zero(t, env.deviceLiveBytes())
	require.Zero(t, env.pool.NumLeased(env.ctx, env.device))
}

func TestCloseAfterTheCreationContextIsCancelled(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	ctx, cancel := context.WithCancel(env.ctx)
	d, err := New(ctx, env.device, 2, OptionEngine{Engine: env.engine}, OptionStreamPool{Pool: env.pool})
	require.NoError(t, err)
	require.NoError(t, d.Warmup(ctx))
	cancel()

	require.NoError(t, d.Close(env.ctx))
	require.Zero(t, env.engine.LiveStates())
	require.True(t, env.engine.IsClosed())
	require.Zero(t, env.deviceLiveBytes())
	require.Zero(t, env.pool.NumLeased(env.ctx, env.device))
}

func TestCloseReleasesEverything(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	d, err := New(env.ctx, env.device, 3, OptionEngine{Engine: env.engine}, OptionStreamPool{Pool: env.pool})
	require.NoError(t, err)

	for _, threadIdx := range []int{0, 2} {
		res := d.DecodeTask(env.ctx, threadIdx, nil, newOutput(types.Shape{4, 4, 3}), codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
		require.True(t, res.Success, res.Err)
	}
	require.Equal(t, 2, env.pool.NumLeased(env.ctx, env.device))
	require.EqualValues(t, 2*DefaultDeviceMemoryPadding, env.deviceLiveBytes())

	// the fake engine refuses to close while decode states are alive, so
	// this also checks the teardown order
	require.NoError(t, d.Close(env.ctx))
	require.True(t, env.engine.IsClosed())
	require.Zero(t, env.engine.LiveStates())
	require.Zero(t, env.deviceLiveBytes())
	require.Zero(t, env.pool.NumLeased(env.ctx, env.device))
	require.Equal(t, 2, env.pool.NumIdle(env.ctx, env.device))

	res := d.DecodeTask(env.ctx, 0, nil, newOutput(types.Shape{4, 4, 3}), codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.ErrorIs(t, res.Err, ErrClosed)

	require.NoError(t, d.Close(env.ctx))
	require.EqualValues(t, 1, env.engine.ClosedCount.Load())
}

func TestNewRejectsInvalidThreadCount(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	_, err := New(env.ctx, env.device, 0, OptionEngine{Engine: env.engine}, OptionStreamPool{Pool: env.pool})
	require.Error(t, err)
}

func TestConfigOption(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	cfg, err := ReadConfig(strings.NewReader("device_memory_padding: 2KiB\nhost_memory_padding: \"512\"\n"))
	require.NoError(t, err)
	d := env.newDecoder(t, 1, OptionConfig{Config: cfg})

	v, _ := d.GetParam(env.ctx, ParamDeviceMemoryPadding)
	require.Equal(t, uint64(2048), v)
	v, _ = d.GetParam(env.ctx, ParamHostMemoryPadding)
	require.Equal(t, uint64(512), v)
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, host.Config{})
	reg := prometheus.NewRegistry()
	d := env.newDecoder(t, 1, OptionMetricsRegisterer{Registerer: reg})

	res := d.DecodeTask(env.ctx, 0, nil, newOutput(types.Shape{4, 4, 3}), codestream(4, 4, 3), rgbParams(types.ImageFormatAny), types.ROI{})
	require.True(t, res.Success, res.Err)
	res = d.DecodeTask(env.ctx, 0, nil, newOutput(types.Shape{4, 4, 3}), codec.ImageSourceFromHostMemory([]byte("junk"), "junk"), rgbParams(types.ImageFormatAny), types.ROI{})
	require.False(t, res.Success)

	count, err := testutil.GatherAndCount(reg, "imgcodec_decoded_samples_total")
	require.NoError(t, err)
	require.Equal(t, 2, count, "one success series and one parse failure series")

	count, err = testutil.GatherAndCount(reg, "imgcodec_per_thread_resources_created_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

// Package jpeg2k implements the JPEG2000 decoder backend that offloads
// decoding to an accelerator.
//
// Every worker thread owns a private set of accelerator resources (a decode
// state, a scratch buffer, an event and a leased stream). The set is created
// on the first decode on the given thread index and is reused until the
// decoder is closed.
package jpeg2k

import (
	"context"
	"fmt"

	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt"
	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/accel/streampool"
	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/engine"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/metrics"
	"github.com/xaionaro-go/imgcodec/types"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

type Decoder struct {
	Params *Params

	device     accel.Device
	engine     engine.Handle
	streamPool *streampool.Pool
	metrics    *metrics.Decoder

	// perThread is indexed by the thread index; an entry is written once
	// (under locker) and read without locking.
	perThread []*perThreadResources

	locker   xsync.Mutex
	closer   *astikit.Closer
	isClosed bool
}

var _ codec.Decoder = (*Decoder)(nil)

// New creates the decoder for the device; the per-thread resources are
// created lazily, see Params.
func New(
	ctx context.Context,
	device accel.Device,
	numThreads int,
	opts ...Option,
) (_ret *Decoder, _err error) {
	ctx = belt.WithField(ctx, "device_id", device.ID())
	logger.Tracef(ctx, "New(%v, %d)", device, numThreads)
	defer func() { logger.Tracef(ctx, "/New(%v, %d): %v", device, numThreads, _err) }()

	if numThreads <= 0 {
		return nil, fmt.Errorf("the amount of threads must be positive, got %d", numThreads)
	}
	options := types.Options(opts)

	d := &Decoder{
		Params:     NewParams(),
		device:     device,
		streamPool: streampool.Default(),
		perThread:  make([]*perThreadResources, numThreads),
		closer:     astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			logger.Debugf(ctx, "got an error, closing the decoder: %v", _err)
			_ = d.Close(ctx)
		}
	}()

	if opt, ok := types.OptionLatest[OptionConfig](options); ok {
		opt.Config.Apply(d.Params)
	}
	if opt, ok := types.OptionLatest[OptionStreamPool](options); ok && opt.Pool != nil {
		d.streamPool = opt.Pool
	}

	if opt, ok := types.OptionLatest[OptionEngine](options); ok && opt.Engine != nil {
		d.engine = opt.Engine
	} else {
		e, err := engine.NewSoftware(ctx, device.DeviceAllocator(), device.PinnedAllocator())
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the engine: %w", err)
		}
		d.engine = e
	}
	// registered first, so it is closed after every per-thread entry
	closeCtx := xcontext.DetachDone(ctx)
	d.closer.AddWithError(func() error {
		return d.engine.Close(closeCtx)
	})

	if opt, ok := types.OptionLatest[OptionMetricsRegisterer](options); ok {
		m, err := metrics.NewDecoder(opt.Registerer, fmt.Sprintf("%s:%v", d.engine, device.ID()))
		if err != nil {
			return nil, fmt.Errorf("unable to register the metrics: %w", err)
		}
		d.metrics = m
	}

	return d, nil
}

func (d *Decoder) String() string {
	return fmt.Sprintf("JPEG2000Decoder(%v)", d.device)
}

func (d *Decoder) NumThreads() int {
	return len(d.perThread)
}

// Close releases all the per-thread resources and then the engine.
// It must not be called while decodes are in progress.
func (d *Decoder) Close(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Close")
	defer func() { logger.Tracef(ctx, "/Close: %v", _err) }()
	return xsync.DoR1(ctx, &d.locker, func() error {
		if d.isClosed {
			return nil
		}
		d.isClosed = true
		for idx := range d.perThread {
			xatomic.StorePointer(&d.perThread[idx], nil)
		}
		return d.closer.Close()
	})
}

// Warmup creates the resources of every thread in advance, so that the
// first decodes do not pay for the allocations.
func (d *Decoder) Warmup(ctx context.Context) error {
	for idx := range d.perThread {
		if _, err := d.getPerThreadResources(ctx, idx); err != nil {
			return fmt.Errorf("unable to prepare the resources of thread %d: %w", idx, err)
		}
	}
	return nil
}

func (d *Decoder) getPerThreadResources(
	ctx context.Context,
	threadIdx int,
) (*perThreadResources, error) {
	if threadIdx < 0 || threadIdx >= len(d.perThread) {
		return nil, ErrInvalidThreadIndex{ThreadIdx: threadIdx, NumThreads: len(d.perThread)}
	}
	if r := xatomic.LoadPointer(&d.perThread[threadIdx]); r != nil {
		return r, nil
	}
	return xsync.DoR2(ctx, &d.locker, func() (*perThreadResources, error) {
		if d.isClosed {
			return nil, ErrClosed
		}
		if r := xatomic.LoadPointer(&d.perThread[threadIdx]); r != nil {
			return r, nil
		}
		r, err := newPerThreadResources(ctx, d, threadIdx)
		if err != nil {
			return nil, err
		}
		scratchSize := r.scratch.Size()
		d.metrics.PerThreadEntryCreated(scratchSize)
		closeCtx := xcontext.DetachDone(ctx)
		d.closer.AddWithError(func() error {
			defer d.metrics.PerThreadEntryClosed(scratchSize)
			return r.Close(closeCtx)
		})
		xatomic.StorePointer(&d.perThread[threadIdx], r)
		return r, nil
	})
}

// CanDecode accepts only whole-image decoding into 8-bit unsigned samples.
func (d *Decoder) CanDecode(
	ctx context.Context,
	in *codec.ImageSource,
	params codec.DecodeParams,
	roi types.ROI,
) bool {
	return !roi.IsSet() && params.DType == types.DataTypeUInt8
}

func (d *Decoder) SetParam(ctx context.Context, name string, value any) error {
	logger.Debugf(ctx, "SetParam(%s, %v)", name, value)
	return d.Params.Set(name, value)
}

func (d *Decoder) GetParam(ctx context.Context, name string) (any, bool) {
	v := d.Params.Get(name)
	if !v.IsSet() {
		return nil, false
	}
	return v.Get(), true
}

package jpeg2k

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/accel/streampool"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/engine"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/header"
	"github.com/xaionaro-go/imgcodec/logger"
)

// perThreadResources are owned by a single worker thread: no locking is
// needed since at most one DecodeTask runs per thread index at a time.
type perThreadResources struct {
	threadIdx   int
	decodeState engine.DecodeState
	bitstream   *header.Stream

	// scratch receives the native (planar) output of the engine; its
	// capacity is fixed for the lifetime of the entry.
	scratch accel.Buffer

	// decodeEvent fences the reuse of scratch against the work enqueued
	// by the previous sample.
	decodeEvent accel.Event
	stream      *streampool.Lease
}

func newPerThreadResources(
	ctx context.Context,
	d *Decoder,
	threadIdx int,
) (_ret *perThreadResources, _err error) {
	devicePadding := d.Params.DeviceMemoryPadding.Load()
	hostPadding := d.Params.HostMemoryPadding.Load()
	logger.Tracef(ctx, "newPerThreadResources(%d): device padding %d, host padding %d", threadIdx, devicePadding, hostPadding)
	defer func() { logger.Tracef(ctx, "/newPerThreadResources(%d): %v", threadIdx, _err) }()

	r := &perThreadResources{
		threadIdx: threadIdx,
		bitstream: header.NewStream(),
	}
	defer func() {
		if _err != nil {
			if err := r.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to release the partially created resources: %v", err)
			}
		}
	}()

	var err error
	r.decodeState, err = d.engine.NewDecodeState(ctx, engine.DecodeStateConfig{
		HostMemoryPadding: hostPadding,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create a decode state: %w", err)
	}

	r.scratch, err = d.device.DeviceAllocator().Allocate(ctx, devicePadding)
	if err != nil {
		return nil, fmt.Errorf("unable to allocate %s of scratch memory: %w", humanize.IBytes(devicePadding), err)
	}

	r.decodeEvent, err = d.device.NewEvent(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create an event: %w", err)
	}

	r.stream, err = d.streamPool.Lease(ctx, d.device)
	if err != nil {
		return nil, fmt.Errorf("unable to lease a stream: %w", err)
	}

	// so that the very first fence is satisfiable
	if err := r.decodeEvent.Record(ctx, r.stream.Stream()); err != nil {
		return nil, fmt.Errorf("unable to record the initial event: %w", err)
	}

	logger.Debugf(ctx, "created the resources of thread %d (scratch: %s)", threadIdx, humanize.IBytes(r.scratch.Size()))
	return r, nil
}

func (r *perThreadResources) String() string {
	return fmt.Sprintf("perThreadResources(%d)", r.threadIdx)
}

// fence waits until the work that may still be using the scratch memory is
// done. Errors of that work belong to the previous sample and were already
// reported (or ignored) there.
func (r *perThreadResources) fence(ctx context.Context) {
	if err := r.decodeEvent.Wait(ctx); err != nil {
		logger.Debugf(ctx, "the previous work on thread %d finished with an error: %v", r.threadIdx, err)
	}
}

// Close releases everything in the reverse order of creation; it is safe to
// call it on a partially created entry.
func (r *perThreadResources) Close(ctx context.Context) error {
	var errs []error
	if r.decodeEvent != nil {
		r.fence(ctx)
	}
	if r.stream != nil {
		r.stream.Release(ctx)
		r.stream = nil
	}
	if r.decodeEvent != nil {
		if err := r.decodeEvent.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the event: %w", err))
		}
		r.decodeEvent = nil
	}
	if r.scratch != nil {
		if err := r.scratch.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to free the scratch memory: %w", err))
		}
		r.scratch = nil
	}
	if r.decodeState != nil {
		if err := r.decodeState.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the decode state: %w", err))
		}
		r.decodeState = nil
	}
	r.bitstream = nil
	return errors.Join(errs...)
}

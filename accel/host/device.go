// Package host implements an accelerator that is emulated on the host CPU.
//
// Every stream is served by its own goroutine, so the asynchronous semantics
// (enqueue vs completion, events, ordering within a stream and overlapping
// between streams) are real, even though the memory is ordinary Go memory.
package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/types"
	"github.com/xaionaro-go/xsync"
)

const (
	defaultStreamQueueSize = 64
)

type Device struct {
	id              types.DeviceID
	config          Config
	deviceAllocator *Allocator
	pinnedAllocator *Allocator

	locker   xsync.Mutex
	streams  map[*Stream]struct{}
	isClosed bool
}

var _ accel.Device = (*Device)(nil)

type Config struct {
	// DeviceMemoryLimit and PinnedMemoryLimit are in bytes; zero means unlimited.
	DeviceMemoryLimit uint64
	PinnedMemoryLimit uint64
	StreamQueueSize   uint
}

func NewDevice(
	ctx context.Context,
	id types.DeviceID,
	cfg Config,
) (*Device, error) {
	if !id.IsAccelerator() {
		return nil, fmt.Errorf("invalid device ID: %v", id)
	}
	if cfg.StreamQueueSize == 0 {
		cfg.StreamQueueSize = defaultStreamQueueSize
	}
	d := &Device{
		id:      id,
		config:  cfg,
		streams: map[*Stream]struct{}{},
	}
	d.deviceAllocator = newAllocator(fmt.Sprintf("%v:device", id), cfg.DeviceMemoryLimit)
	d.pinnedAllocator = newAllocator(fmt.Sprintf("%v:pinned", id), cfg.PinnedMemoryLimit)
	logger.Debugf(ctx, "initialized host-emulated accelerator %v", id)
	return d, nil
}

func (d *Device) String() string {
	return fmt.Sprintf("HostDevice(%d)", int(d.id))
}

func (d *Device) ID() types.DeviceID {
	return d.id
}

func (d *Device) Type() types.DeviceType {
	return types.DeviceTypeHost
}

func (d *Device) DeviceAllocator() accel.Allocator {
	return d.deviceAllocator
}

func (d *Device) PinnedAllocator() accel.Allocator {
	return d.pinnedAllocator
}

func (d *Device) NewStream(ctx context.Context) (accel.Stream, error) {
	return xsync.DoA1R2(ctx, &d.locker, d.newStreamLocked, ctx)
}

func (d *Device) newStreamLocked(ctx context.Context) (accel.Stream, error) {
	if d.isClosed {
		return nil, fmt.Errorf("%v: %w", d, accel.ErrClosed)
	}
	s := newStream(ctx, d, len(d.streams), d.config.StreamQueueSize)
	d.streams[s] = struct{}{}
	return s, nil
}

func (d *Device) forgetStream(ctx context.Context, s *Stream) {
	d.locker.Do(ctx, func() {
		delete(d.streams, s)
	})
}

func (d *Device) NewEvent(ctx context.Context) (accel.Event, error) {
	isClosed := xsync.DoR1(ctx, &d.locker, func() bool { return d.isClosed })
	if isClosed {
		return nil, fmt.Errorf("%v: %w", d, accel.ErrClosed)
	}
	return newEvent(d), nil
}

// NumStreams returns the amount of streams that are created and not closed yet.
func (d *Device) NumStreams(ctx context.Context) int {
	return xsync.DoR1(ctx, &d.locker, func() int { return len(d.streams) })
}

// Close destroys the streams that are still alive. Memory that is still
// allocated is reported, but it stays valid until its buffers are closed.
func (d *Device) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close: %v", d)
	defer func() { logger.Debugf(ctx, "/Close: %v: %v", d, _err) }()

	streams := xsync.DoR1(ctx, &d.locker, func() []*Stream {
		if d.isClosed {
			return nil
		}
		d.isClosed = true
		result := make([]*Stream, 0, len(d.streams))
		for s := range d.streams {
			result = append(result, s)
		}
		return result
	})

	var errs []error
	for _, s := range streams {
		logger.Warnf(ctx, "%v was not closed before closing %v", s, d)
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close %v: %w", s, err))
		}
	}
	for _, a := range []*Allocator{d.deviceAllocator, d.pinnedAllocator} {
		if live := a.LiveBytes(); live != 0 {
			logger.Warnf(ctx, "%v: %d bytes are still allocated", a, live)
		}
	}
	return errors.Join(errs...)
}

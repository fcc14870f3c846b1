// Package accel describes the accelerator an image decoder offloads work to.
//
// The model follows the usual GPU runtime model: work is enqueued
// asynchronously to a Stream and is executed in submission order; an Event
// recorded on a Stream marks a point in that order and can be awaited from
// the host. Memory is obtained from Allocators: one for device memory and
// one for page-locked ("pinned") host memory.
package accel

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/types"
)

type Device interface {
	fmt.Stringer
	types.Closer

	ID() types.DeviceID
	Type() types.DeviceType

	NewStream(ctx context.Context) (Stream, error)
	NewEvent(ctx context.Context) (Event, error)

	// DeviceAllocator and PinnedAllocator must be safe for concurrent use.
	DeviceAllocator() Allocator
	PinnedAllocator() Allocator
}

// Operation is a piece of work executed on a Stream. The returned error is
// reported by the next Event recorded on the same Stream.
type Operation func(ctx context.Context) error

type Stream interface {
	fmt.Stringer
	types.Closer

	DeviceID() types.DeviceID

	// Enqueue schedules the operation after all the previously enqueued ones
	// and returns without waiting for it.
	Enqueue(ctx context.Context, op Operation) error

	// Synchronize blocks until everything enqueued so far is executed.
	Synchronize(ctx context.Context) error
}

type Event interface {
	types.Closer

	// Record marks the current tail of the stream. Re-recording an event
	// replaces the previously recorded point.
	Record(ctx context.Context, s Stream) error

	// Wait blocks until the recorded point is reached and returns the errors
	// of the operations executed on that stream since the previous record.
	// Waiting on a never-recorded event returns immediately.
	Wait(ctx context.Context) error

	IsCompleted() bool
}

type Allocator interface {
	fmt.Stringer
	Allocate(ctx context.Context, size uint64) (Buffer, error)
}

// Buffer is a piece of memory obtained from an Allocator; Close returns it.
type Buffer interface {
	types.Closer

	// Bytes returns the memory as it is seen by the operations executed on
	// the device.
	Bytes() []byte
	Size() uint64
}

// DeviceGetter resolves device ordinals into devices.
type DeviceGetter interface {
	GetDevice(ctx context.Context, id types.DeviceID) (Device, error)
}

// Devices is the trivial DeviceGetter.
type Devices map[types.DeviceID]Device

var _ DeviceGetter = (Devices)(nil)

func (m Devices) GetDevice(ctx context.Context, id types.DeviceID) (Device, error) {
	dev, ok := m[id]
	if !ok {
		return nil, ErrNoDevice{DeviceID: id}
	}
	return dev, nil
}

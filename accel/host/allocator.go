package host

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"go.uber.org/atomic"
)

type Allocator struct {
	name  string
	limit uint64

	liveBytes   atomic.Uint64
	allocations atomic.Uint64
}

var _ accel.Allocator = (*Allocator)(nil)

func newAllocator(name string, limit uint64) *Allocator {
	return &Allocator{
		name:  name,
		limit: limit,
	}
}

func (a *Allocator) String() string {
	return fmt.Sprintf("HostAllocator(%s)", a.name)
}

// LiveBytes returns the amount of bytes allocated and not freed yet.
func (a *Allocator) LiveBytes() uint64 {
	return a.liveBytes.Load()
}

// Allocations returns the total amount of successful allocations so far.
func (a *Allocator) Allocations() uint64 {
	return a.allocations.Load()
}

func (a *Allocator) Allocate(
	ctx context.Context,
	size uint64,
) (accel.Buffer, error) {
	for {
		cur := a.liveBytes.Load()
		if a.limit > 0 && cur+size > a.limit {
			return nil, accel.ErrOutOfMemory{
				Allocator: a.name,
				Requested: size,
				Available: a.limit - cur,
			}
		}
		if a.liveBytes.CompareAndSwap(cur, cur+size) {
			break
		}
	}
	a.allocations.Inc()
	return &Buffer{
		allocator: a,
		data:      make([]byte, size),
	}, nil
}

type Buffer struct {
	allocator *Allocator
	data      []byte
	isClosed  atomic.Bool
}

var _ accel.Buffer = (*Buffer)(nil)

func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *Buffer) Close(ctx context.Context) error {
	if !b.isClosed.CompareAndSwap(false, true) {
		return nil
	}
	b.allocator.liveBytes.Sub(uint64(len(b.data)))
	return nil
}

// Package streampool provides a process-wide pool of execution streams.
//
// Creating a stream is expensive, so streams are leased rather than created:
// a Lease borrows an idle stream of the given device (creating one only if
// there is none) and Release returns it to the pool for the next lessee.
package streampool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type Pool struct {
	locker xsync.Mutex
	idle   map[accel.Device][]accel.Stream
	leased map[accel.Device]int
}

func New() *Pool {
	return &Pool{
		idle:   map[accel.Device][]accel.Stream{},
		leased: map[accel.Device]int{},
	}
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide pool.
func Default() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = New()
	})
	return defaultPool
}

type Lease struct {
	pool       *Pool
	device     accel.Device
	stream     accel.Stream
	isReleased atomic.Bool
}

func (l *Lease) Stream() accel.Stream {
	return l.stream
}

func (l *Lease) String() string {
	return fmt.Sprintf("Lease(%v)", l.stream)
}

// Release returns the stream to the pool. It is safe to call it more than once.
func (l *Lease) Release(ctx context.Context) {
	if !l.isReleased.CompareAndSwap(false, true) {
		return
	}
	l.pool.put(ctx, l.device, l.stream)
}

func (p *Pool) Lease(
	ctx context.Context,
	device accel.Device,
) (_ret *Lease, _err error) {
	logger.Tracef(ctx, "Lease: %v", device)
	defer func() { logger.Tracef(ctx, "/Lease: %v: %v %v", device, _ret, _err) }()
	return xsync.DoA2R2(ctx, &p.locker, p.leaseLocked, ctx, device)
}

func (p *Pool) leaseLocked(
	ctx context.Context,
	device accel.Device,
) (*Lease, error) {
	var s accel.Stream
	if idle := p.idle[device]; len(idle) > 0 {
		s = idle[len(idle)-1]
		p.idle[device] = idle[:len(idle)-1]
	} else {
		var err error
		s, err = device.NewStream(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to create a stream on %v: %w", device, err)
		}
		logger.Debugf(ctx, "created a new stream %v", s)
	}
	p.leased[device]++
	return &Lease{
		pool:   p,
		device: device,
		stream: s,
	}, nil
}

func (p *Pool) put(
	ctx context.Context,
	device accel.Device,
	s accel.Stream,
) {
	p.locker.Do(ctx, func() {
		p.leased[device]--
		if p.leased[device] == 0 {
			delete(p.leased, device)
		}
		p.idle[device] = append(p.idle[device], s)
	})
}

// NumIdle returns the amount of streams of the device waiting for a lessee.
func (p *Pool) NumIdle(ctx context.Context, device accel.Device) int {
	return xsync.DoR1(ctx, &p.locker, func() int { return len(p.idle[device]) })
}

// NumLeased returns the amount of streams of the device currently leased.
func (p *Pool) NumLeased(ctx context.Context, device accel.Device) int {
	return xsync.DoR1(ctx, &p.locker, func() int { return p.leased[device] })
}

// Purge destroys the idle streams of the device. It has to be called before
// the device is closed; the streams that are still leased are not affected.
func (p *Pool) Purge(
	ctx context.Context,
	device accel.Device,
) (_err error) {
	logger.Debugf(ctx, "Purge: %v", device)
	defer func() { logger.Debugf(ctx, "/Purge: %v: %v", device, _err) }()
	streams := xsync.DoR1(ctx, &p.locker, func() []accel.Stream {
		streams := p.idle[device]
		delete(p.idle, device)
		return streams
	})
	return closeStreams(ctx, streams)
}

// Close destroys all the idle streams of all the devices.
func (p *Pool) Close(ctx context.Context) error {
	streams := xsync.DoR1(ctx, &p.locker, func() []accel.Stream {
		var streams []accel.Stream
		for dev, idle := range p.idle {
			streams = append(streams, idle...)
			delete(p.idle, dev)
		}
		return streams
	})
	return closeStreams(ctx, streams)
}

func closeStreams(ctx context.Context, streams []accel.Stream) error {
	var errs []error
	for _, s := range streams {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close %v: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

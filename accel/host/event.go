package host

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/xsync"
)

type eventRecord struct {
	done chan struct{}
	err  error
}

func newEventRecord() *eventRecord {
	return &eventRecord{done: make(chan struct{})}
}

func (r *eventRecord) complete(err error) {
	r.err = err
	close(r.done)
}

func (r *eventRecord) wait() error {
	<-r.done
	return r.err
}

func (r *eventRecord) isCompleted() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

type Event struct {
	device *Device

	locker   xsync.Mutex
	record   *eventRecord
	isClosed bool
}

var _ accel.Event = (*Event)(nil)

func newEvent(device *Device) *Event {
	return &Event{device: device}
}

func (e *Event) Record(
	ctx context.Context,
	s accel.Stream,
) error {
	hs, ok := s.(*Stream)
	if !ok {
		return fmt.Errorf("cannot record on %T: %w", s, accel.ErrForeignObject)
	}
	if hs.device != e.device {
		return fmt.Errorf("%v belongs to another device than the event: %w", hs, accel.ErrForeignObject)
	}
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &e.locker, func() error {
		if e.isClosed {
			return fmt.Errorf("the event: %w", accel.ErrClosed)
		}
		rec := newEventRecord()
		if err := hs.enqueue(ctx, queuedOp{Marker: rec}); err != nil {
			return fmt.Errorf("unable to enqueue the marker: %w", err)
		}
		e.record = rec
		return nil
	})
}

func (e *Event) lastRecord(ctx context.Context) *eventRecord {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &e.locker, func() *eventRecord {
		return e.record
	})
}

func (e *Event) Wait(ctx context.Context) error {
	rec := e.lastRecord(ctx)
	if rec == nil {
		return nil
	}
	return rec.wait()
}

func (e *Event) IsCompleted() bool {
	rec := e.lastRecord(context.Background())
	return rec == nil || rec.isCompleted()
}

func (e *Event) Close(ctx context.Context) error {
	e.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		e.isClosed = true
	})
	return nil
}

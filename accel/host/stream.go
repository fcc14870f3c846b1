package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
)

type queuedOp struct {
	Operation accel.Operation
	Marker    *eventRecord
}

type Stream struct {
	device *Device
	index  int
	queue  chan queuedOp

	locker   xsync.Mutex
	isClosed bool
	stopped  chan struct{}
}

var _ accel.Stream = (*Stream)(nil)

func newStream(
	ctx context.Context,
	device *Device,
	index int,
	queueSize uint,
) *Stream {
	s := &Stream{
		device:  device,
		index:   index,
		queue:   make(chan queuedOp, queueSize),
		stopped: make(chan struct{}),
	}
	observability.Go(ctx, func(ctx context.Context) {
		defer close(s.stopped)
		s.serve(ctx)
	})
	return s
}

func (s *Stream) String() string {
	return fmt.Sprintf("HostStream(%d:%d)", int(s.device.id), s.index)
}

func (s *Stream) DeviceID() types.DeviceID {
	return s.device.id
}

func (s *Stream) serve(ctx context.Context) {
	logger.Tracef(ctx, "serve: %v", s)
	defer func() { logger.Tracef(ctx, "/serve: %v", s) }()

	var pendingErrs []error
	for op := range s.queue {
		if op.Marker != nil {
			op.Marker.complete(errors.Join(pendingErrs...))
			pendingErrs = pendingErrs[:0]
			continue
		}
		if err := runOperation(ctx, op.Operation); err != nil {
			pendingErrs = append(pendingErrs, err)
		}
	}
	if len(pendingErrs) > 0 {
		logger.Errorf(ctx, "%v is closed with unreported errors: %v", s, errors.Join(pendingErrs...))
	}
}

func runOperation(
	ctx context.Context,
	op accel.Operation,
) (_err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = accel.ErrOperationPanic{Value: r}
		}
	}()
	return op(ctx)
}

func (s *Stream) Enqueue(
	ctx context.Context,
	op accel.Operation,
) error {
	if op == nil {
		return fmt.Errorf("the operation is nil")
	}
	return s.enqueue(ctx, queuedOp{Operation: op})
}

func (s *Stream) enqueue(
	ctx context.Context,
	op queuedOp,
) error {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.locker, func() error {
		if s.isClosed {
			return fmt.Errorf("%v: %w", s, accel.ErrClosed)
		}
		s.queue <- op
		return nil
	})
}

func (s *Stream) Synchronize(ctx context.Context) error {
	rec := newEventRecord()
	if err := s.enqueue(ctx, queuedOp{Marker: rec}); err != nil {
		return err
	}
	return rec.wait()
}

// Close waits for the already enqueued operations and stops the stream.
func (s *Stream) Close(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Close: %v", s)
	defer func() { logger.Tracef(ctx, "/Close: %v: %v", s, _err) }()

	wasClosed := xsync.DoR1(ctx, &s.locker, func() bool {
		if s.isClosed {
			return true
		}
		s.isClosed = true
		close(s.queue)
		return false
	})
	if wasClosed {
		return nil
	}
	<-s.stopped
	s.device.forgetStream(ctx, s)
	return nil
}

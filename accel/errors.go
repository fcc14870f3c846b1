package accel

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/imgcodec/types"
)

var (
	ErrClosed        = errors.New("closed")
	ErrForeignObject = errors.New("the object belongs to a different device implementation")
)

type ErrNoDevice struct {
	DeviceID types.DeviceID
}

func (e ErrNoDevice) Error() string {
	return fmt.Sprintf("device %v is not available", e.DeviceID)
}

type ErrOutOfMemory struct {
	Allocator string
	Requested uint64
	Available uint64
}

func (e ErrOutOfMemory) Error() string {
	return fmt.Sprintf(
		"%s: out of memory: requested %s, available %s",
		e.Allocator, humanize.IBytes(e.Requested), humanize.IBytes(e.Available),
	)
}

// ErrOperationPanic is reported when an Operation panics while being executed.
type ErrOperationPanic struct {
	Value any
}

func (e ErrOperationPanic) Error() string {
	return fmt.Sprintf("operation panicked: %v", e.Value)
}

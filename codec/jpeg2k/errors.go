package jpeg2k

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	// ErrParse is wrapped by all the errors of the parse stage.
	ErrParse               = errors.New("unable to parse the image")
	ErrUnsupported         = errors.New("unsupported image")
	ErrDevice              = errors.New("accelerator failure")
	ErrClosed              = errors.New("the decoder is closed")
	ErrOutputShapeMismatch = errors.New("the output view does not match the decoded image shape")
)

type Stage int

const (
	StageUndefined = Stage(iota)
	StageSetup
	StageParse
	StageDecode
	StageConvert
)

func (s Stage) String() string {
	switch s {
	case StageUndefined:
		return "undefined"
	case StageSetup:
		return "setup"
	case StageParse:
		return "parse"
	case StageDecode:
		return "decode"
	case StageConvert:
		return "convert"
	}
	return fmt.Sprintf("unknown_stage_%d", int(s))
}

// StageError is the diagnostic of a failed sample.
type StageError struct {
	Stage Stage
	Err   error
}

func (e StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e StageError) Unwrap() error {
	return e.Err
}

type ErrInvalidThreadIndex struct {
	ThreadIdx  int
	NumThreads int
}

func (e ErrInvalidThreadIndex) Error() string {
	return fmt.Sprintf("thread index %d is out of range [0, %d)", e.ThreadIdx, e.NumThreads)
}

// ErrScratchTooSmall is reported when the image does not fit into the
// scratch buffer of the thread; the buffer is never grown, set a larger
// device memory padding instead.
type ErrScratchTooSmall struct {
	Required uint64
	Capacity uint64
}

func (e ErrScratchTooSmall) Error() string {
	return fmt.Sprintf(
		"the scratch buffer is too small: the image requires %s, but the capacity is %s",
		humanize.IBytes(e.Required), humanize.IBytes(e.Capacity),
	)
}

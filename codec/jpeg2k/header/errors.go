package header

import (
	"errors"
)

var (
	ErrTruncated        = errors.New("the data is truncated")
	ErrInvalidSignature = errors.New("neither a JP2 file nor a JPEG2000 codestream")
	ErrInvalidMarker    = errors.New("unexpected marker")
	ErrInvalidBox       = errors.New("invalid JP2 box")
	ErrInvalidValue     = errors.New("invalid header value")
)

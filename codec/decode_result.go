package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrCannotDecode is reported for samples no decoder is able to serve.
	ErrCannotDecode = errors.New("the decoder cannot decode the sample with the requested parameters")
)

type DecodeResult struct {
	Success bool
	Err     error
}

func DecodeResultSuccess() DecodeResult {
	return DecodeResult{Success: true}
}

func DecodeResultFailure(err error) DecodeResult {
	if err == nil {
		err = errors.New("unknown error")
	}
	return DecodeResult{Err: err}
}

func (r DecodeResult) String() string {
	if r.Success {
		return "DecodeResult(success)"
	}
	return fmt.Sprintf("DecodeResult(failure: %v)", r.Err)
}

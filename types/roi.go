package types

import (
	"fmt"
)

// ROI is a region of interest: a sub-rectangle given as [Begin, End)
// coordinates in (y, x) order. The zero value means "the whole image".
type ROI struct {
	Begin []int
	End   []int
}

func (r ROI) IsSet() bool {
	return len(r.Begin) > 0 || len(r.End) > 0
}

func (r ROI) String() string {
	if !r.IsSet() {
		return "ROI(whole)"
	}
	return fmt.Sprintf("ROI(%v..%v)", r.Begin, r.End)
}

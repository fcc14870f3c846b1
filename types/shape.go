package types

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// Shape is the extents of a sample, outermost first (e.g. HWC).
type Shape []int64

func (s Shape) Volume() int64 {
	return Volume(s...)
}

func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, 0, len(s))
	for _, v := range s {
		parts = append(parts, fmt.Sprintf("%d", v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Volume returns the product of the extents; an empty list has volume 1.
func Volume[T constraints.Integer](extents ...T) T {
	var result T = 1
	for _, e := range extents {
		result *= e
	}
	return result
}

package types

import (
	"strings"
)

// InputKind is a bitmask of the kinds of inputs a decoder accepts.
type InputKind uint

const (
	InputKindNone         = InputKind(0)
	InputKindHostMemory   = InputKind(1 << 0)
	InputKindDeviceMemory = InputKind(1 << 1)
	InputKindStream       = InputKind(1 << 2)
	InputKindFilename     = InputKind(1 << 3)
)

func (k InputKind) Has(other InputKind) bool {
	return k&other == other
}

func (k InputKind) String() string {
	if k == InputKindNone {
		return "none"
	}
	var parts []string
	for _, c := range []struct {
		Kind InputKind
		Name string
	}{
		{InputKindHostMemory, "host_memory"},
		{InputKindDeviceMemory, "device_memory"},
		{InputKindStream, "stream"},
		{InputKindFilename, "filename"},
	} {
		if k.Has(c.Kind) {
			parts = append(parts, c.Name)
		}
	}
	return strings.Join(parts, "|")
}

package jpeg2k

import (
	"fmt"

	"github.com/xaionaro-go/imgcodec/types"
	"github.com/xaionaro-go/typing"
	"go.uber.org/atomic"
)

const (
	ParamDeviceMemoryPadding = "nvjpeg2k_device_memory_padding"
	ParamHostMemoryPadding   = "nvjpeg2k_host_memory_padding"

	DefaultDeviceMemoryPadding = 256
	DefaultHostMemoryPadding   = 256
)

// Params is the parameter store of the decoder.
//
// The values are read when a per-thread resource entry is created, that is
// on the first decode on the given thread index (or on Warmup). Changing a
// value does not resize the entries that already exist.
type Params struct {
	DeviceMemoryPadding atomic.Uint64
	HostMemoryPadding   atomic.Uint64
}

func NewParams() *Params {
	p := &Params{}
	p.DeviceMemoryPadding.Store(DefaultDeviceMemoryPadding)
	p.HostMemoryPadding.Store(DefaultHostMemoryPadding)
	return p
}

func (p *Params) field(name string) *atomic.Uint64 {
	switch name {
	case ParamDeviceMemoryPadding:
		return &p.DeviceMemoryPadding
	case ParamHostMemoryPadding:
		return &p.HostMemoryPadding
	}
	return nil
}

// Set sets the parameter. Unknown names are ignored and are not an error,
// so that callers may set parameters of other backends unconditionally.
func (p *Params) Set(name string, value any) error {
	f := p.field(name)
	if f == nil {
		return nil
	}
	v, err := toByteCount(value)
	if err != nil {
		return fmt.Errorf("invalid value of '%s': %w", name, err)
	}
	f.Store(v)
	return nil
}

// Get returns the parameter value; it is unset for unknown names.
func (p *Params) Get(name string) typing.Optional[uint64] {
	f := p.field(name)
	if f == nil {
		return typing.Optional[uint64]{}
	}
	return typing.Opt(f.Load())
}

func toByteCount(value any) (uint64, error) {
	switch v := value.(type) {
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case types.ByteSize:
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative byte count: %d", v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative byte count: %d", v)
		}
		return uint64(v), nil
	case string:
		s, err := types.ParseByteSize(v)
		if err != nil {
			return 0, err
		}
		return uint64(s), nil
	}
	return 0, fmt.Errorf("unexpected type %T, expected a byte count", value)
}

package jpeg2k

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/types"
)

type Factory struct {
	Devices accel.DeviceGetter
	Options []Option
}

var _ codec.DecoderFactory = (*Factory)(nil)

func NewFactory(devices accel.DeviceGetter, opts ...Option) *Factory {
	return &Factory{
		Devices: devices,
		Options: opts,
	}
}

func (f *Factory) String() string {
	return "JPEG2000DecoderFactory"
}

func (f *Factory) Properties() codec.Properties {
	return codec.Properties{
		SupportedInputKinds: types.InputKindHostMemory,
		// a region of interest would still require decoding the whole image
		SupportsPartialDecoding: false,
		Fallback:                true,
	}
}

func (f *Factory) IsSupported(deviceID types.DeviceID) bool {
	return deviceID.IsAccelerator()
}

func (f *Factory) NewDecoder(
	ctx context.Context,
	deviceID types.DeviceID,
	threadPool codec.ThreadPool,
) (codec.Decoder, error) {
	if !f.IsSupported(deviceID) {
		return nil, fmt.Errorf("device %v is not supported", deviceID)
	}
	device, err := f.Devices.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("unable to get device %v: %w", deviceID, err)
	}
	d, err := New(ctx, device, threadPool.NumThreads(), f.Options...)
	if err != nil {
		return nil, err
	}
	return d, nil
}

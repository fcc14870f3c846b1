package codec

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/types"
	"github.com/xaionaro-go/xsync"
)

var (
	ErrNoDecoder = errors.New("no decoder is able to decode the sample")
)

type registryKey struct {
	Factory  DecoderFactory
	DeviceID types.DeviceID
}

// Registry selects a decoder backend for an input. Backends are tried in
// registration order, except that fallback backends go after all the others.
// A decoder is instantiated once per (backend, device) and then reused.
type Registry struct {
	threadPool ThreadPool

	locker    xsync.Mutex
	factories []DecoderFactory
	decoders  map[registryKey]Decoder
}

func NewRegistry(threadPool ThreadPool) *Registry {
	return &Registry{
		threadPool: threadPool,
		decoders:   map[registryKey]Decoder{},
	}
}

func (r *Registry) Register(ctx context.Context, f DecoderFactory) {
	r.locker.Do(ctx, func() {
		r.factories = append(r.factories, f)
		sort.SliceStable(r.factories, func(i, j int) bool {
			return !r.factories[i].Properties().Fallback && r.factories[j].Properties().Fallback
		})
	})
}

// Factories returns the backends in the order they are tried.
func (r *Registry) Factories(ctx context.Context) []DecoderFactory {
	return xsync.DoR1(ctx, &r.locker, func() []DecoderFactory {
		return append([]DecoderFactory(nil), r.factories...)
	})
}

// GetDecoder returns the first decoder that is able to decode the sample.
func (r *Registry) GetDecoder(
	ctx context.Context,
	deviceID types.DeviceID,
	in *ImageSource,
	params DecodeParams,
	roi types.ROI,
) (_ret Decoder, _err error) {
	logger.Tracef(ctx, "GetDecoder: %v, %v, %v, %v", deviceID, in, params, roi)
	defer func() { logger.Tracef(ctx, "/GetDecoder: %v, %v, %v, %v: %v %v", deviceID, in, params, roi, _ret, _err) }()

	if in == nil {
		return nil, fmt.Errorf("the input is nil")
	}

	var errs []error
	for _, f := range r.Factories(ctx) {
		if !f.IsSupported(deviceID) {
			logger.Tracef(ctx, "%v does not support %v", f, deviceID)
			continue
		}
		if !f.Properties().SupportedInputKinds.Has(in.Kind) {
			logger.Tracef(ctx, "%v does not support input kind %v", f, in.Kind)
			continue
		}
		d, err := r.getOrNewDecoder(ctx, f, deviceID)
		if err != nil {
			logger.Warnf(ctx, "unable to initialize %v on %v: %v", f, deviceID, err)
			errs = append(errs, fmt.Errorf("%v: %w", f, err))
			continue
		}
		if d.CanDecode(ctx, in, params, roi) {
			return d, nil
		}
	}
	errs = append([]error{ErrNoDecoder}, errs...)
	return nil, errors.Join(errs...)
}

func (r *Registry) getOrNewDecoder(
	ctx context.Context,
	f DecoderFactory,
	deviceID types.DeviceID,
) (Decoder, error) {
	return xsync.DoR2(ctx, &r.locker, func() (Decoder, error) {
		key := registryKey{Factory: f, DeviceID: deviceID}
		if d, ok := r.decoders[key]; ok {
			return d, nil
		}
		d, err := f.NewDecoder(ctx, deviceID, r.threadPool)
		if err != nil {
			return nil, err
		}
		logger.Debugf(ctx, "initialized %v on %v", d, deviceID)
		r.decoders[key] = d
		return d, nil
	})
}

// Close closes all the decoders instantiated by the registry.
func (r *Registry) Close(ctx context.Context) error {
	decoders := xsync.DoR1(ctx, &r.locker, func() map[registryKey]Decoder {
		decoders := r.decoders
		r.decoders = map[registryKey]Decoder{}
		return decoders
	})
	var errs []error
	for key, d := range decoders {
		if err := d.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close %v on %v: %w", d, key.DeviceID, err))
		}
	}
	return errors.Join(errs...)
}

package jpeg2k

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xaionaro-go/imgcodec/accel/streampool"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/engine"
	"github.com/xaionaro-go/imgcodec/types"
)

type Option = types.Option

// OptionEngine replaces the engine; by default the software engine is
// created on the device allocators. The decoder takes the ownership.
type OptionEngine struct {
	types.OptionCommons
	Engine engine.Handle
}

// OptionStreamPool sets the pool the streams are leased from;
// streampool.Default() is used by default.
type OptionStreamPool struct {
	types.OptionCommons
	Pool *streampool.Pool
}

// OptionMetricsRegisterer enables the metrics.
type OptionMetricsRegisterer struct {
	types.OptionCommons
	Registerer prometheus.Registerer
}

// OptionConfig sets the initial values of the parameter store from a Config.
type OptionConfig struct {
	types.OptionCommons
	Config Config
}

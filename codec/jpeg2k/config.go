package jpeg2k

import (
	"fmt"
	"io"

	"github.com/xaionaro-go/imgcodec/types"
	"gopkg.in/yaml.v3"
)

// Config is the file-loadable configuration of the decoder.
type Config struct {
	DeviceMemoryPadding types.ByteSize   `yaml:"device_memory_padding"`
	HostMemoryPadding   types.ByteSize   `yaml:"host_memory_padding"`
	ThreadCount         int              `yaml:"thread_count"`
	DeviceID            types.DeviceID   `yaml:"device_id"`
	DeviceType          types.DeviceType `yaml:"device_type"`
}

func DefaultConfig() Config {
	return Config{
		DeviceMemoryPadding: DefaultDeviceMemoryPadding,
		HostMemoryPadding:   DefaultHostMemoryPadding,
		ThreadCount:         1,
		DeviceID:            0,
		DeviceType:          types.DeviceTypeHost,
	}
}

// ReadConfig reads the YAML configuration; absent fields keep the defaults.
func ReadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("unable to decode the config: %w", err)
	}
	if cfg.ThreadCount <= 0 {
		return Config{}, fmt.Errorf("thread_count must be positive, got %d", cfg.ThreadCount)
	}
	return cfg, nil
}

func (cfg Config) Apply(p *Params) {
	p.DeviceMemoryPadding.Store(uint64(cfg.DeviceMemoryPadding))
	p.HostMemoryPadding.Store(uint64(cfg.HostMemoryPadding))
}

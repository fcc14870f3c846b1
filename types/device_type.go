package types

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type DeviceType int

const (
	DeviceTypeNone = DeviceType(iota)

	// DeviceTypeHost is the accelerator emulated on the host CPU (see package accel/host).
	DeviceTypeHost

	DeviceTypeCUDA
	EndOfDeviceType
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeNone:
		return "none"
	case DeviceTypeHost:
		return "host"
	case DeviceTypeCUDA:
		return "cuda"
	}
	return fmt.Sprintf("unknown_%X", int64(t))
}

func sanitizeString(s string) string {
	return strings.Trim(strings.ToLower(s), " \"\n\r\t")
}

func DeviceTypeFromString(s string) (DeviceType, error) {
	s = sanitizeString(s)
	for t := DeviceTypeNone; t < EndOfDeviceType; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return DeviceTypeNone, fmt.Errorf("unknown device type: '%s'", s)
}

func (t *DeviceType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("unable to decode the device type as a string: %w", err)
	}
	v, err := DeviceTypeFromString(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t DeviceType) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *DeviceType) Set(s string) error {
	v, err := DeviceTypeFromString(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t DeviceType) Type() string {
	return "DeviceType"
}

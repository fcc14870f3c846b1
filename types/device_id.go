package types

import (
	"fmt"
)

// DeviceID is an ordinal of an accelerator device.
type DeviceID int

// DeviceIDCPUOnly is the placeholder used when no accelerator is selected.
const DeviceIDCPUOnly = DeviceID(-99999)

func (id DeviceID) IsAccelerator() bool {
	return id >= 0
}

func (id DeviceID) String() string {
	if id == DeviceIDCPUOnly {
		return "cpu_only"
	}
	return fmt.Sprintf("device%d", int(id))
}

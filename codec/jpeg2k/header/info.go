package header

import (
	"fmt"
)

type ComponentInfo struct {
	// Precision is the bit depth of the samples (1..38).
	Precision    uint8
	Signed       bool
	SubsamplingX uint8
	SubsamplingY uint8
}

type Info struct {
	Width      uint32
	Height     uint32
	TileWidth  uint32
	TileHeight uint32
	Components []ComponentInfo
	IsJP2      bool
}

func (info Info) String() string {
	return fmt.Sprintf("Info(%dx%d, %d components, jp2:%t)", info.Width, info.Height, len(info.Components), info.IsJP2)
}

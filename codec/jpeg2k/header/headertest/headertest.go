// Package headertest builds synthetic JPEG2000 headers for tests.
package headertest

import (
	"encoding/binary"
)

type Component struct {
	Precision    uint8
	Signed       bool
	SubsamplingX uint8
	SubsamplingY uint8
}

// Codestream returns a main header (SOC + SIZ) followed by body, which is
// opaque for the header parser.
func Codestream(width, height uint32, components []Component, body []byte) []byte {
	length := 38 + 3*len(components)
	b := make([]byte, 0, 4+length+len(body))
	b = binary.BigEndian.AppendUint16(b, 0xFF4F)
	b = binary.BigEndian.AppendUint16(b, 0xFF51)
	b = binary.BigEndian.AppendUint16(b, uint16(length))
	b = binary.BigEndian.AppendUint16(b, 0) // Rsiz
	b = binary.BigEndian.AppendUint32(b, width)
	b = binary.BigEndian.AppendUint32(b, height)
	b = binary.BigEndian.AppendUint32(b, 0) // XOsiz
	b = binary.BigEndian.AppendUint32(b, 0) // YOsiz
	b = binary.BigEndian.AppendUint32(b, width)
	b = binary.BigEndian.AppendUint32(b, height)
	b = binary.BigEndian.AppendUint32(b, 0) // XTOsiz
	b = binary.BigEndian.AppendUint32(b, 0) // YTOsiz
	b = binary.BigEndian.AppendUint16(b, uint16(len(components)))
	for _, c := range components {
		ssiz := (c.Precision - 1) & 0x7F
		if c.Signed {
			ssiz |= 0x80
		}
		dx, dy := c.SubsamplingX, c.SubsamplingY
		if dx == 0 {
			dx = 1
		}
		if dy == 0 {
			dy = 1
		}
		b = append(b, ssiz, dx, dy)
	}
	return append(b, body...)
}

// Components returns n unsigned, not subsampled components of the given precision.
func Components(n int, precision uint8) []Component {
	result := make([]Component, n)
	for i := range result {
		result[i] = Component{Precision: precision}
	}
	return result
}

func box(boxType string, content []byte) []byte {
	b := make([]byte, 0, 8+len(content))
	b = binary.BigEndian.AppendUint32(b, uint32(8+len(content)))
	b = append(b, boxType...)
	return append(b, content...)
}

// JP2 wraps the codestream into a minimal JP2 file.
func JP2(width, height uint32, numComponents int, codestream []byte) []byte {
	var ihdr []byte
	ihdr = binary.BigEndian.AppendUint32(ihdr, height)
	ihdr = binary.BigEndian.AppendUint32(ihdr, width)
	ihdr = binary.BigEndian.AppendUint16(ihdr, uint16(numComponents))
	ihdr = append(ihdr, 7, 7, 0, 0) // BPC, C, UnkC, IPR

	var b []byte
	b = append(b, box("jP  ", []byte{0x0D, 0x0A, 0x87, 0x0A})...)
	b = append(b, box("ftyp", []byte("jp2 \x00\x00\x00\x00jp2 "))...)
	b = append(b, box("jp2h", box("ihdr", ihdr))...)
	b = append(b, box("jp2c", codestream)...)
	return b
}

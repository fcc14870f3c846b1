// Package header parses the headers of JPEG2000 images: the boxes of a JP2
// file and the SIZ marker segment of a codestream.
package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

const (
	markerSOC = 0xFF4F
	markerSIZ = 0xFF51

	boxTypeSignature   = 0x6A502020 // "jP  "
	boxTypeHeader      = 0x6A703268 // "jp2h"
	boxTypeImageHeader = 0x69686472 // "ihdr"
	boxTypeCodestream  = 0x6A703263 // "jp2c"

	sizFixedLength  = 38
	maxComponents   = 16384
	maxPrecision    = 38
	ihdrContentSize = 14

	// any output layout (up to 3 channels per component) must be
	// addressable with int64
	maxSamples = math.MaxInt64 / 4
)

var (
	jp2Signature        = []byte{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' ', 0x0D, 0x0A, 0x87, 0x0A}
	jp2SignatureContent = []byte{0x0D, 0x0A, 0x87, 0x0A}
)

// Stream is a reusable parse handle. After a successful Parse it describes
// the image and references its codestream; after a failed one it is empty.
// Info and Codestream are valid until the next Parse or Reset.
type Stream struct {
	info       Info
	codestream []byte
	components []ComponentInfo
}

func NewStream() *Stream {
	return &Stream{}
}

func (s *Stream) Reset() {
	s.components = s.components[:0]
	s.info = Info{}
	s.codestream = nil
}

func (s *Stream) Info() Info {
	return s.info
}

// Codestream returns the raw JPEG2000 codestream (starting with SOC),
// without the JP2 boxes around it.
func (s *Stream) Codestream() []byte {
	return s.codestream
}

// HasSignature tells if the data looks like a JP2 file or a codestream.
func HasSignature(data []byte) bool {
	return bytes.HasPrefix(data, jp2Signature) ||
		(len(data) >= 4 && binary.BigEndian.Uint16(data) == markerSOC && binary.BigEndian.Uint16(data[2:]) == markerSIZ)
}

func (s *Stream) Parse(data []byte) error {
	s.Reset()
	if err := s.parse(data); err != nil {
		s.Reset()
		return err
	}
	return nil
}

func (s *Stream) parse(data []byte) error {
	switch {
	case bytes.HasPrefix(data, jp2Signature):
		return s.parseJP2(data)
	case len(data) < len(jp2Signature) && bytes.HasPrefix(jp2Signature, data):
		return fmt.Errorf("JP2 signature: %w", ErrTruncated)
	case len(data) < 2:
		return fmt.Errorf("codestream signature: %w", ErrTruncated)
	case binary.BigEndian.Uint16(data) == markerSOC:
		return s.parseCodestream(data)
	}
	return ErrInvalidSignature
}

func readBox(data []byte) (boxType uint32, content []byte, rest []byte, err error) {
	if len(data) < 8 {
		return 0, nil, nil, fmt.Errorf("box header: %w", ErrTruncated)
	}
	size := uint64(binary.BigEndian.Uint32(data))
	boxType = binary.BigEndian.Uint32(data[4:])
	headerSize := uint64(8)
	switch size {
	case 0:
		size = uint64(len(data))
	case 1:
		if len(data) < 16 {
			return 0, nil, nil, fmt.Errorf("extended box header: %w", ErrTruncated)
		}
		size = binary.BigEndian.Uint64(data[8:])
		headerSize = 16
	}
	if size < headerSize {
		return 0, nil, nil, fmt.Errorf("box 0x%08X has length %d: %w", boxType, size, ErrInvalidBox)
	}
	if size > uint64(len(data)) {
		return 0, nil, nil, fmt.Errorf("box 0x%08X of length %d, but only %d bytes left: %w", boxType, size, len(data), ErrTruncated)
	}
	return boxType, data[headerSize:size], data[size:], nil
}

func (s *Stream) parseJP2(data []byte) error {
	s.info.IsJP2 = true

	boxType, content, rest, err := readBox(data)
	if err != nil {
		return err
	}
	if boxType != boxTypeSignature || !bytes.Equal(content, jp2SignatureContent) {
		return fmt.Errorf("the first box is not a valid signature box: %w", ErrInvalidSignature)
	}

	var ihdr []byte
	for len(rest) > 0 {
		boxType, content, rest, err = readBox(rest)
		if err != nil {
			return err
		}
		switch boxType {
		case boxTypeHeader:
			ihdr, err = findImageHeader(content)
			if err != nil {
				return err
			}
		case boxTypeCodestream:
			if err := s.parseCodestream(content); err != nil {
				return err
			}
			if ihdr != nil {
				return s.checkImageHeader(ihdr)
			}
			return nil
		}
	}
	return fmt.Errorf("no codestream box: %w", ErrTruncated)
}

func findImageHeader(jp2h []byte) ([]byte, error) {
	for len(jp2h) > 0 {
		boxType, content, rest, err := readBox(jp2h)
		if err != nil {
			return nil, fmt.Errorf("header box: %w", err)
		}
		if boxType == boxTypeImageHeader {
			if len(content) < ihdrContentSize {
				return nil, fmt.Errorf("image header box: %w", ErrTruncated)
			}
			return content, nil
		}
		jp2h = rest
	}
	return nil, nil
}

func (s *Stream) checkImageHeader(ihdr []byte) error {
	height := binary.BigEndian.Uint32(ihdr)
	width := binary.BigEndian.Uint32(ihdr[4:])
	numComponents := int(binary.BigEndian.Uint16(ihdr[8:]))
	if height != s.info.Height || width != s.info.Width || numComponents != len(s.info.Components) {
		return fmt.Errorf(
			"the image header box (%dx%dx%d) does not match the codestream (%dx%dx%d): %w",
			width, height, numComponents,
			s.info.Width, s.info.Height, len(s.info.Components),
			ErrInvalidValue,
		)
	}
	return nil
}

func (s *Stream) parseCodestream(cs []byte) error {
	if len(cs) < 6 {
		return fmt.Errorf("codestream main header: %w", ErrTruncated)
	}
	if m := binary.BigEndian.Uint16(cs); m != markerSOC {
		return fmt.Errorf("expected SOC, got 0x%04X: %w", m, ErrInvalidMarker)
	}
	if m := binary.BigEndian.Uint16(cs[2:]); m != markerSIZ {
		return fmt.Errorf("expected SIZ after SOC, got 0x%04X: %w", m, ErrInvalidMarker)
	}
	length := int(binary.BigEndian.Uint16(cs[4:]))
	if length < sizFixedLength+3 {
		return fmt.Errorf("SIZ length %d: %w", length, ErrInvalidValue)
	}
	if len(cs) < 4+length {
		return fmt.Errorf("SIZ marker segment: %w", ErrTruncated)
	}
	siz := cs[6 : 4+length]

	xSize := binary.BigEndian.Uint32(siz[2:])
	ySize := binary.BigEndian.Uint32(siz[6:])
	xOffset := binary.BigEndian.Uint32(siz[10:])
	yOffset := binary.BigEndian.Uint32(siz[14:])
	tileWidth := binary.BigEndian.Uint32(siz[18:])
	tileHeight := binary.BigEndian.Uint32(siz[22:])
	numComponents := int(binary.BigEndian.Uint16(siz[34:]))

	if numComponents < 1 || numComponents > maxComponents {
		return fmt.Errorf("%d components: %w", numComponents, ErrInvalidValue)
	}
	if length != sizFixedLength+3*numComponents {
		return fmt.Errorf("SIZ length %d does not match %d components: %w", length, numComponents, ErrInvalidValue)
	}
	if xSize <= xOffset || ySize <= yOffset {
		return fmt.Errorf("empty image area (%d..%d x %d..%d): %w", xOffset, xSize, yOffset, ySize, ErrInvalidValue)
	}
	if tileWidth == 0 || tileHeight == 0 {
		return fmt.Errorf("zero tile size: %w", ErrInvalidValue)
	}
	width, height := xSize-xOffset, ySize-yOffset
	if hi, samples := bits.Mul64(uint64(width)*uint64(height), uint64(numComponents)); hi != 0 || samples > maxSamples {
		return fmt.Errorf("%dx%d with %d components is too large: %w", width, height, numComponents, ErrInvalidValue)
	}

	for c := 0; c < numComponents; c++ {
		b := siz[sizFixedLength-2+3*c:]
		comp := ComponentInfo{
			Precision:    (b[0] & 0x7F) + 1,
			Signed:       b[0]&0x80 != 0,
			SubsamplingX: b[1],
			SubsamplingY: b[2],
		}
		if comp.Precision > maxPrecision {
			return fmt.Errorf("component #%d precision %d: %w", c, comp.Precision, ErrInvalidValue)
		}
		if comp.SubsamplingX == 0 || comp.SubsamplingY == 0 {
			return fmt.Errorf("component #%d has zero subsampling: %w", c, ErrInvalidValue)
		}
		s.components = append(s.components, comp)
	}

	s.info.Width = width
	s.info.Height = height
	s.info.TileWidth = tileWidth
	s.info.TileHeight = tileHeight
	s.info.Components = s.components
	s.codestream = cs
	return nil
}

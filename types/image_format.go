package types

import (
	"fmt"
	"strings"
)

type ImageFormat int

const (
	// ImageFormatAny keeps the channels exactly as they are stored in the image.
	ImageFormatAny = ImageFormat(iota)
	ImageFormatRGB
	ImageFormatBGR
	ImageFormatGray
	EndOfImageFormat
)

func (f ImageFormat) String() string {
	switch f {
	case ImageFormatAny:
		return "any"
	case ImageFormatRGB:
		return "rgb"
	case ImageFormatBGR:
		return "bgr"
	case ImageFormatGray:
		return "gray"
	}
	return fmt.Sprintf("unknown_%d", int(f))
}

// Channels returns the amount of output channels for an image that natively
// has nativeChannels channels.
func (f ImageFormat) Channels(nativeChannels int) int {
	switch f {
	case ImageFormatRGB, ImageFormatBGR:
		return 3
	case ImageFormatGray:
		return 1
	}
	return nativeChannels
}

func ImageFormatFromString(s string) (ImageFormat, error) {
	s = strings.Trim(strings.ToLower(s), " \n\r\t")
	for f := ImageFormatAny; f < EndOfImageFormat; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return ImageFormatAny, fmt.Errorf("unknown image format: '%s'", s)
}

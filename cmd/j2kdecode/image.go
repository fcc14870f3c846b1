package main

import (
	"image"
	"image/color"

	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/types"
)

// sampleToImage wraps an interleaved 8-bit sample into an image.Image.
func sampleToImage(s codec.SampleView, format types.ImageFormat) image.Image {
	height, width, channels := int(s.Shape[0]), int(s.Shape[1]), int(s.Shape[2])
	rect := image.Rect(0, 0, width, height)
	if channels == 1 {
		return &image.Gray{Pix: s.Data, Stride: width, Rect: rect}
	}

	img := image.NewNRGBA(rect)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px := s.Data[(y*width+x)*channels:][:channels]
			var c color.NRGBA
			switch channels {
			case 2:
				c = color.NRGBA{R: px[0], G: px[0], B: px[0], A: px[1]}
			case 3:
				c = color.NRGBA{R: px[0], G: px[1], B: px[2], A: 0xFF}
				if format == types.ImageFormatBGR {
					c.R, c.B = c.B, c.R
				}
			default:
				c = color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

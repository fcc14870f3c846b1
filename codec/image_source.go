package codec

import (
	"fmt"

	"github.com/xaionaro-go/imgcodec/types"
)

// ImageSource is a compressed image to be decoded.
type ImageSource struct {
	Kind types.InputKind
	Data []byte

	// Name is used only for diagnostics.
	Name string
}

func ImageSourceFromHostMemory(data []byte, name string) *ImageSource {
	return &ImageSource{
		Kind: types.InputKindHostMemory,
		Data: data,
		Name: name,
	}
}

func (s *ImageSource) String() string {
	if s == nil {
		return "ImageSource(nil)"
	}
	if s.Name != "" {
		return fmt.Sprintf("ImageSource(%s)", s.Name)
	}
	return fmt.Sprintf("ImageSource(%s, %d bytes)", s.Kind, len(s.Data))
}

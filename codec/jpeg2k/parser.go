package jpeg2k

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k/header"
	"github.com/xaionaro-go/imgcodec/pool"
	"github.com/xaionaro-go/imgcodec/types"
)

var headerStreamPool = pool.NewPool(header.NewStream, (*header.Stream).Reset)

// Parser reads the image information used to pre-allocate the outputs.
type Parser struct{}

var _ codec.ImageParser = Parser{}

func (Parser) CanParse(ctx context.Context, in *codec.ImageSource) bool {
	if in == nil || !in.Kind.Has(types.InputKindHostMemory) {
		return false
	}
	return header.HasSignature(in.Data)
}

func (Parser) GetInfo(ctx context.Context, in *codec.ImageSource) (codec.ImageInfo, error) {
	s := headerStreamPool.Get()
	defer headerStreamPool.Put(s)
	if err := parseImageInfo(ctx, s, in); err != nil {
		return codec.ImageInfo{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	info := s.Info()
	return codec.ImageInfo{
		Shape:    nativeShape(info),
		BitDepth: int(info.Components[0].Precision),
	}, nil
}

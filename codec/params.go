package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/imgcodec/types"
)

// SetParams sets the parameters on the decoder; the last value of a
// repeated key wins.
func SetParams(
	ctx context.Context,
	d Decoder,
	params types.ParamItems,
) error {
	var errs []error
	for _, item := range params.Deduplicate() {
		if err := d.SetParam(ctx, item.Key, item.Value); err != nil {
			errs = append(errs, fmt.Errorf("unable to set '%s' to '%s': %w", item.Key, item.Value, err))
		}
	}
	return errors.Join(errs...)
}

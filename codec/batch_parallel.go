package codec

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/types"
)

// BatchParallel decodes a batch by scheduling one DecodeTask per sample on a
// thread pool. A failure of a sample never aborts the rest of the batch.
type BatchParallel struct {
	Decoder    Decoder
	ThreadPool ThreadPool
}

func NewBatchParallel(d Decoder, threadPool ThreadPool) *BatchParallel {
	return &BatchParallel{
		Decoder:    d,
		ThreadPool: threadPool,
	}
}

// DecodeBatch decodes ins into outs. rois may be nil (whole images);
// otherwise it must have the same length as ins.
func (b *BatchParallel) DecodeBatch(
	ctx context.Context,
	stream accel.Stream,
	outs []SampleView,
	ins []*ImageSource,
	params DecodeParams,
	rois []types.ROI,
) (_ret []DecodeResult, _err error) {
	logger.Tracef(ctx, "DecodeBatch: %d samples, %v", len(ins), params)
	defer func() { logger.Tracef(ctx, "/DecodeBatch: %d samples, %v: %v", len(ins), params, _err) }()

	if len(outs) != len(ins) {
		return nil, fmt.Errorf("the amount of outputs (%d) does not match the amount of inputs (%d)", len(outs), len(ins))
	}
	if rois != nil && len(rois) != len(ins) {
		return nil, fmt.Errorf("the amount of ROIs (%d) does not match the amount of inputs (%d)", len(rois), len(ins))
	}

	results := make([]DecodeResult, len(ins))
	for i := range ins {
		var roi types.ROI
		if rois != nil {
			roi = rois[i]
		}
		if !b.Decoder.CanDecode(ctx, ins[i], params, roi) {
			results[i] = DecodeResultFailure(fmt.Errorf("%v: %w", ins[i], ErrCannotDecode))
			continue
		}
		i := i
		err := b.ThreadPool.Submit(ctx, func(ctx context.Context, threadIdx int) {
			results[i] = b.Decoder.DecodeTask(ctx, threadIdx, stream, outs[i], ins[i], params, roi)
		})
		if err != nil {
			b.ThreadPool.Wait(ctx)
			return nil, fmt.Errorf("unable to schedule sample #%d: %w", i, err)
		}
	}
	b.ThreadPool.Wait(ctx)
	return results, nil
}

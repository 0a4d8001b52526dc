package sampler

import (
	"fmt"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// ErrVideoTooShort is returned when a contiguous crop does not fit the video.
var ErrVideoTooShort = fmt.Errorf("%w: video shorter than requested clip", entity.ErrInvalidParam)

// TemporalCrop selects NumFrames consecutive frames at a uniformly random
// offset that keeps the run inside the video.
type TemporalCrop struct {
	numFrames int
	src       *source
}

func NewTemporalCrop(numFrames int, opts ...Option) (*TemporalCrop, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("%w: crop num_frames must be positive, got %d", entity.ErrInvalidParam, numFrames)
	}
	s := applyOptions(opts)
	return &TemporalCrop{numFrames: numFrames, src: newSource(s.seed)}, nil
}

func (c *TemporalCrop) Sample(totalFrames int) (Selection, error) {
	if err := checkTotal(totalFrames); err != nil {
		return nil, err
	}
	if totalFrames < c.numFrames {
		return nil, fmt.Errorf("%w: %d frames, need %d", ErrVideoTooShort, totalFrames, c.numFrames)
	}
	start := c.src.intn(totalFrames - c.numFrames + 1)
	return Slice{Start: start, Stop: start + c.numFrames, Step: 1}, nil
}

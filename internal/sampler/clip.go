package sampler

import (
	"fmt"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// Clip selects NumFrames frames per video.
//
// With Interval zero the frames are spread evenly over the whole video. With
// Interval > 0 they are Interval frames apart, starting at Start when set and
// at a uniformly random offset otherwise. Videos too short for the requested
// span are oversampled: frames are spread evenly and repeat.
type Clip struct {
	numFrames int
	interval  int
	start     *int
	src       *source
}

type ClipConfig struct {
	NumFrames int
	Interval  int
	// Start fixes the first frame of strided clips. Nil means random.
	Start *int
}

func NewClip(cfg ClipConfig, opts ...Option) (*Clip, error) {
	if cfg.NumFrames <= 0 {
		return nil, fmt.Errorf("%w: clip num_frames must be positive, got %d", entity.ErrInvalidParam, cfg.NumFrames)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("%w: clip interval must be non-negative, got %d", entity.ErrInvalidParam, cfg.Interval)
	}
	if cfg.Start != nil && *cfg.Start < 0 {
		return nil, fmt.Errorf("%w: clip start must be non-negative, got %d", entity.ErrInvalidParam, *cfg.Start)
	}
	s := applyOptions(opts)
	return &Clip{
		numFrames: cfg.NumFrames,
		interval:  cfg.Interval,
		start:     cfg.Start,
		src:       newSource(s.seed),
	}, nil
}

func (c *Clip) Sample(totalFrames int) (Selection, error) {
	if err := checkTotal(totalFrames); err != nil {
		return nil, err
	}
	if c.interval == 0 {
		return evenlySpaced(totalFrames, c.numFrames), nil
	}

	span := (c.numFrames-1)*c.interval + 1
	if span > totalFrames {
		return evenlySpaced(totalFrames, c.numFrames), nil
	}

	maxStart := totalFrames - span
	var start int
	switch {
	case c.start == nil:
		start = c.src.intn(maxStart + 1)
	case *c.start > maxStart:
		start = maxStart
	default:
		start = *c.start
	}
	return Slice{Start: start, Stop: start + span, Step: c.interval}, nil
}

package sampler

import (
	"fmt"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// TemporalSegment splits a video into equal segments and takes one frame from
// each: a random one while training, the centre frame in test mode.
type TemporalSegment struct {
	segments int
	testMode bool
	src      *source
}

func NewTemporalSegment(segments int, testMode bool, opts ...Option) (*TemporalSegment, error) {
	if segments <= 0 {
		return nil, fmt.Errorf("%w: segment count must be positive, got %d", entity.ErrInvalidParam, segments)
	}
	s := applyOptions(opts)
	return &TemporalSegment{segments: segments, testMode: testMode, src: newSource(s.seed)}, nil
}

func (s *TemporalSegment) Sample(totalFrames int) (Selection, error) {
	if err := checkTotal(totalFrames); err != nil {
		return nil, err
	}
	if totalFrames < s.segments {
		return evenlySpaced(totalFrames, s.segments), nil
	}
	out := make(IndexList, s.segments)
	for i := range out {
		lo := i * totalFrames / s.segments
		hi := (i + 1) * totalFrames / s.segments
		if s.testMode {
			out[i] = lo + (hi-lo)/2
		} else {
			out[i] = lo + s.src.intn(hi-lo)
		}
	}
	return out, nil
}

// FullVideo selects every Step-th frame of the whole video.
type FullVideo struct {
	step int
}

func NewFullVideo(step int) (*FullVideo, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: full video step must be positive, got %d", entity.ErrInvalidParam, step)
	}
	return &FullVideo{step: step}, nil
}

func (f *FullVideo) Sample(totalFrames int) (Selection, error) {
	if err := checkTotal(totalFrames); err != nil {
		return nil, err
	}
	return Slice{Start: 0, Stop: totalFrames, Step: f.step}, nil
}

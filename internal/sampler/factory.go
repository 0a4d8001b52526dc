package sampler

import (
	"fmt"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// Kind names a sampling policy in configuration.
type Kind string

const (
	KindClip    Kind = "clip"
	KindCrop    Kind = "crop"
	KindSegment Kind = "segment"
	KindFull    Kind = "full"
)

// Spec is the configuration-level description of a sampler.
type Spec struct {
	Kind      Kind
	NumFrames int
	Interval  int
	Start     *int
	Seed      *int64
}

// FromSpec builds the sampler named by spec.Kind.
func FromSpec(spec Spec) (Sampler, error) {
	var opts []Option
	if spec.Seed != nil {
		opts = append(opts, WithSeed(*spec.Seed))
	}
	switch spec.Kind {
	case KindClip, "":
		return NewClip(ClipConfig{NumFrames: spec.NumFrames, Interval: spec.Interval, Start: spec.Start}, opts...)
	case KindCrop:
		return NewTemporalCrop(spec.NumFrames, opts...)
	case KindSegment:
		return NewTemporalSegment(spec.NumFrames, false, opts...)
	case KindFull:
		step := spec.Interval
		if step == 0 {
			step = 1
		}
		return NewFullVideo(step)
	}
	return nil, fmt.Errorf("%w: unknown sampler %q", entity.ErrInvalidParam, spec.Kind)
}

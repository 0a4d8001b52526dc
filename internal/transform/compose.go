// Package transform holds the per-clip augmentation and tensor conversion
// steps applied after frames are decoded.
package transform

import (
	"errors"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// ErrNoFrames is returned by image steps that run after tensor conversion.
var ErrNoFrames = errors.New("clip has no decoded frames")

// ErrNoTensor is returned by tensor steps that run before ToTensor.
var ErrNoTensor = errors.New("clip has not been converted to a tensor")

// Clip is the value flowing through a pipeline. Frames holds decoded images
// until a ToTensor step replaces them with Tensor.
type Clip struct {
	Frames []image.Image
	Tensor *Tensor
}

// FrameTransform rewrites a clip and never sees the label.
type FrameTransform interface {
	Apply(clip Clip) (Clip, error)
}

// LabeledTransform rewrites a clip and may rewrite its label.
type LabeledTransform interface {
	ApplyLabeled(clip Clip, label entity.Label) (Clip, entity.Label, error)
}

// StepKind is the capability a step declares to the pipeline.
type StepKind int

const (
	FrameOnly StepKind = iota
	LabelAware
)

// Step is one tagged entry of a Compose pipeline.
type Step struct {
	kind    StepKind
	frame   FrameTransform
	labeled LabeledTransform
}

// Frames wraps a transform whose label passes through unchanged.
func Frames(t FrameTransform) Step {
	return Step{kind: FrameOnly, frame: t}
}

// Labeled wraps a transform that receives and returns the label.
func Labeled(t LabeledTransform) Step {
	return Step{kind: LabelAware, labeled: t}
}

func (s Step) Kind() StepKind { return s.kind }

// Compose applies its steps in order.
type Compose struct {
	steps []Step
}

func NewCompose(steps ...Step) *Compose {
	return &Compose{steps: steps}
}

func (c *Compose) ApplyLabeled(clip Clip, label entity.Label) (Clip, entity.Label, error) {
	var err error
	for i, step := range c.steps {
		switch step.kind {
		case FrameOnly:
			clip, err = step.frame.Apply(clip)
		case LabelAware:
			clip, label, err = step.labeled.ApplyLabeled(clip, label)
		default:
			err = fmt.Errorf("unknown step kind %d", step.kind)
		}
		if err != nil {
			return Clip{}, entity.NoLabel, fmt.Errorf("transform step %d: %w", i, err)
		}
	}
	return clip, label, nil
}

// Apply runs the pipeline for callers without a label.
func (c *Compose) Apply(clip Clip) (Clip, error) {
	out, _, err := c.ApplyLabeled(clip, entity.NoLabel)
	return out, err
}

func (c *Compose) Len() int { return len(c.steps) }

// Identity returns the clip unchanged.
type Identity struct{}

func (Identity) Apply(clip Clip) (Clip, error) { return clip, nil }

// MapLabel rewrites the label, for example to merge classes.
type MapLabel func(entity.Label) (entity.Label, error)

func (f MapLabel) ApplyLabeled(clip Clip, label entity.Label) (Clip, entity.Label, error) {
	out, err := f(label)
	if err != nil {
		return Clip{}, entity.NoLabel, err
	}
	return clip, out, nil
}

// source is a random stream owned by one transform.
type source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSource(seed *int64) *source {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return &source{rng: rand.New(rand.NewSource(s))}
}

// draw runs fn with exclusive access to the generator.
func (s *source) draw(fn func(r *rand.Rand)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.rng)
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// Option configures the random stream of a transform.
type Option func(*settings)

type settings struct {
	seed *int64
}

func WithSeed(seed int64) Option {
	return func(s *settings) { s.seed = &seed }
}

func applyOptions(opts []Option) settings {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func requireFrames(clip Clip) error {
	if clip.Tensor != nil || len(clip.Frames) == 0 {
		return ErrNoFrames
	}
	return nil
}

func mapFrames(clip Clip, fn func(image.Image) image.Image) Clip {
	out := make([]image.Image, len(clip.Frames))
	for i, f := range clip.Frames {
		out[i] = fn(f)
	}
	return Clip{Frames: out}
}

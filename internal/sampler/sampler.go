// Package sampler chooses which frames of a video are decoded for one example.
package sampler

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// Selection is the set of frames chosen from a video of a given length:
// either an IndexList or a Slice.
type Selection interface {
	// Indices expands the selection into ordered frame indices.
	Indices() []int
	Len() int
}

// IndexList is an explicit ordered list of frame indices.
type IndexList []int

func (l IndexList) Indices() []int {
	out := make([]int, len(l))
	copy(out, l)
	return out
}

func (l IndexList) Len() int { return len(l) }

// Slice selects start, start+step, ... up to but excluding stop.
type Slice struct {
	Start, Stop, Step int
}

func (s Slice) Indices() []int {
	out := make([]int, 0, s.Len())
	for i := s.Start; i < s.Stop; i += s.Step {
		out = append(out, i)
	}
	return out
}

func (s Slice) Len() int {
	if s.Step <= 0 || s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + s.Step - 1) / s.Step
}

func (s Slice) String() string {
	return fmt.Sprintf("%d:%d:%d", s.Start, s.Stop, s.Step)
}

// Sampler picks frames from a video with totalFrames frames.
type Sampler interface {
	Sample(totalFrames int) (Selection, error)
}

// source is a random stream owned by one sampler. *rand.Rand is not safe for
// concurrent use, so calls are serialised per sampler.
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

func (s *source) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Option configures the random stream of a sampler.
type Option func(*settings)

type settings struct {
	seed *int64
}

// WithSeed makes the sampler reproducible.
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

func checkTotal(totalFrames int) error {
	if totalFrames <= 0 {
		return fmt.Errorf("%w: video has %d frames", entity.ErrInvalidParam, totalFrames)
	}
	return nil
}

// evenlySpaced returns n indices spread over [0, total). When total < n the
// frames repeat, keeping the sequence non-decreasing.
func evenlySpaced(total, n int) IndexList {
	out := make(IndexList, n)
	for i := range out {
		out[i] = i * total / n
	}
	return out
}

// Package dataset turns metadata records and video files into training
// examples: a clip of sampled, transformed frames and its label.
package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/labelset"
	"github.com/fiapx/fiapx-video-datasets/internal/sampler"
	"github.com/fiapx/fiapx-video-datasets/internal/transform"
	"go.uber.org/zap"
)

// Example is one loaded item.
type Example struct {
	Path        string
	TotalFrames int
	Indices     []int
	Clip        transform.Clip
	Label       entity.Label
}

// Dataset is an indexable collection of examples. Implementations are safe
// for concurrent Get calls.
type Dataset interface {
	Len() int
	Get(ctx context.Context, index int) (Example, error)
}

// FrameCounter returns a precomputed frame count for a video, keyed by the
// path relative to the dataset root. ok=false falls back to probing.
type FrameCounter func(relPath string) (count int, ok bool)

type options struct {
	sampler    sampler.Sampler
	pipeline   *transform.Compose
	logger     *zap.Logger
	counter    FrameCounter
	labels     labelset.LabelSet
	labelKey   func(fileName string) string
	filter     func(name string) bool
	extensions []string
	tilesInRow int
}

type Option func(*options)

// WithSampler sets the frame sampler.
func WithSampler(s sampler.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithTransform sets the pipeline applied to every clip. The default
// converts frames to a tensor.
func WithTransform(c *transform.Compose) Option {
	return func(o *options) { o.pipeline = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithFrameCounter(fc FrameCounter) Option {
	return func(o *options) { o.counter = fc }
}

// WithLabelSet enables labeled mode for folder datasets. Labels are looked
// up by the full file name, extension included, unless WithLabelKey says
// otherwise.
func WithLabelSet(ls labelset.LabelSet) Option {
	return func(o *options) { o.labels = ls }
}

// WithLabelKey changes the label set key derived from a video file name.
func WithLabelKey(key func(fileName string) string) Option {
	return func(o *options) { o.labelKey = key }
}

// FileStem strips the extension, for label sets keyed by bare video ids.
func FileStem(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}

// WithFilter keeps only the files for which keep returns true.
func WithFilter(keep func(name string) bool) Option {
	return func(o *options) { o.filter = keep }
}

// WithExtensions overrides the accepted file extensions, dot included.
func WithExtensions(exts ...string) Option {
	return func(o *options) { o.extensions = exts }
}

// WithTilesPerRow sets how many tiles a collage row holds.
func WithTilesPerRow(n int) Option {
	return func(o *options) { o.tilesInRow = n }
}

func applyOptions(opts []Option, defaultSampler func() (sampler.Sampler, error)) (options, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.pipeline == nil {
		o.pipeline = transform.NewCompose(transform.Frames(transform.ToTensor{}))
	}
	if o.sampler == nil {
		s, err := defaultSampler()
		if err != nil {
			return o, err
		}
		o.sampler = s
	}
	return o, nil
}

func fullVideo() (sampler.Sampler, error) { return sampler.NewFullVideo(1) }

func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%w: example index %d out of range [0, %d)", entity.ErrLookup, index, n)
	}
	return nil
}

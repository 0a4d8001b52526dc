package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/port"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/metrics"
	"github.com/fiapx/fiapx-video-datasets/internal/sampler"
	"github.com/fiapx/fiapx-video-datasets/internal/transform"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Loader runs the per-example pipeline: count, sample, load, transform.
// It is shared by every dataset kind and by the clip export worker.
type Loader struct {
	kind     string
	reader   port.VideoReader
	sampler  sampler.Sampler
	pipeline *transform.Compose
	logger   *zap.Logger
}

func NewLoader(kind string, reader port.VideoReader, s sampler.Sampler, pipeline *transform.Compose, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pipeline == nil {
		pipeline = transform.NewCompose()
	}
	return &Loader{kind: kind, reader: reader, sampler: s, pipeline: pipeline, logger: logger}
}

// Load builds one example from the video at path. A positive totalFrames
// skips probing the file.
func (l *Loader) Load(ctx context.Context, path string, totalFrames int, label entity.Label) (Example, error) {
	return l.loadFrom(ctx, l.reader, path, totalFrames, label)
}

// loadFrom is Load with a reader chosen per call.
func (l *Loader) loadFrom(ctx context.Context, reader port.VideoReader, path string, totalFrames int, label entity.Label) (ex Example, err error) {
	ctx, span := otel.Tracer("dataset").Start(ctx, "dataset.Load")
	span.SetAttributes(
		attribute.String("dataset.kind", l.kind),
		attribute.String("video.path", path),
	)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			l.logger.Debug("example load failed", zap.String("path", path), zap.Error(err))
		}
		metrics.ExamplesLoadedTotal.WithLabelValues(l.kind, outcome).Inc()
		span.End()
	}()

	if totalFrames <= 0 {
		err = stage(ctx, "count", func(ctx context.Context) error {
			n, err := reader.CountFrames(ctx, path)
			totalFrames = n
			return err
		})
		if err != nil {
			return Example{}, fmt.Errorf("count frames of %s: %w", path, err)
		}
	}

	var sel sampler.Selection
	err = stage(ctx, "sample", func(context.Context) error {
		var err error
		sel, err = l.sampler.Sample(totalFrames)
		return err
	})
	if err != nil {
		return Example{}, fmt.Errorf("sample %s: %w", path, err)
	}
	indices := sel.Indices()

	var clip transform.Clip
	err = stage(ctx, "load", func(ctx context.Context) error {
		frames, err := reader.LoadFrames(ctx, path, indices)
		clip.Frames = frames
		return err
	})
	if err != nil {
		return Example{}, fmt.Errorf("load frames of %s: %w", path, err)
	}
	metrics.FramesDecodedTotal.Add(float64(len(clip.Frames)))

	err = stage(ctx, "transform", func(context.Context) error {
		var err error
		clip, label, err = l.pipeline.ApplyLabeled(clip, label)
		return err
	})
	if err != nil {
		return Example{}, fmt.Errorf("transform %s: %w", path, err)
	}

	l.logger.Debug("example loaded",
		zap.String("path", path),
		zap.Int("total_frames", totalFrames),
		zap.Int("frames", len(indices)),
		zap.Stringer("label", label),
	)
	return Example{Path: path, TotalFrames: totalFrames, Indices: indices, Clip: clip, Label: label}, nil
}

func stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := otel.Tracer("dataset").Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	metrics.LoadStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
	}
	return err
}

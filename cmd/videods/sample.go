package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-video-datasets/internal/dataset"
	"github.com/fiapx/fiapx-video-datasets/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-video-datasets/internal/sampler"
	"github.com/fiapx/fiapx-video-datasets/internal/transform"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type sampleOptions struct {
	meta        metadataFlags
	root        string
	index       int
	out         string
	mode        string
	tilesPerRow int
	labelByStem bool

	samplerKind string
	numFrames   int
	interval    int
	seed        int64

	resize     int
	crop       int
	randCrop   bool
	multiScale bool
	flip       float64
	rotation   float64
	jitter     float64
	grayscale  float64
}

func newSampleCmd(root *rootOptions) *cobra.Command {
	o := &sampleOptions{}

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Load one example and write its frames as PNG",
		Long: `Builds a dataset over --root, loads the example at --index through the sampler and transforms, writes the resulting frames to --out and logs the tensor shape handed to training.
Modes: record (metadata file of videos), folder (every video under --root, labels from --categories keyed by file name), collage (metadata file of sprite sheets).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, root.log)
		},
	}
	o.meta.register(cmd)
	f := cmd.Flags()
	f.StringVarP(&o.root, "root", "r", ".", "Dataset root directory")
	f.IntVarP(&o.index, "index", "i", 0, "Example index")
	f.StringVarP(&o.out, "out", "o", "frames", "Output directory for the PNG frames")
	f.StringVar(&o.mode, "mode", "record", "Dataset kind, one of [record, folder, collage]")
	f.IntVar(&o.tilesPerRow, "tiles-per-row", dataset.DefaultTilesPerRow, "Collage tiles per row")
	f.BoolVar(&o.labelByStem, "label-by-stem", false, "Folder mode: look up labels by file name without extension")

	f.StringVar(&o.samplerKind, "sampler", string(sampler.KindClip), "Sampler, one of [clip, crop, segment, full]")
	f.IntVarP(&o.numFrames, "frames", "n", 8, "Frames per clip (segments for the segment sampler)")
	f.IntVar(&o.interval, "interval", 0, "Stride between clip frames, 0 spreads them over the video")
	f.Int64Var(&o.seed, "seed", 0, "Seed for samplers and random transforms, 0 for a random seed")

	f.IntVar(&o.resize, "resize", 0, "Resize frames to this square size")
	f.IntVar(&o.crop, "crop", 0, "Crop frames to this square size")
	f.BoolVar(&o.randCrop, "random-crop", false, "Crop at a random position instead of the centre")
	f.BoolVar(&o.multiScale, "multiscale-crop", false, "Use a multi-scale corner crop of --crop size")
	f.Float64Var(&o.flip, "flip", 0, "Horizontal flip probability")
	f.Float64Var(&o.rotation, "rotation", 0, "Largest random rotation in degrees")
	f.Float64Var(&o.jitter, "jitter", 0, "Colour jitter strength")
	f.Float64Var(&o.grayscale, "grayscale", 0, "Grayscale probability")
	return cmd
}

func (o *sampleOptions) seedPtr() *int64 {
	if o.seed == 0 {
		return nil
	}
	return &o.seed
}

func (o *sampleOptions) build(cmd *cobra.Command, log *zap.Logger) (dataset.Dataset, error) {
	s, err := sampler.FromSpec(sampler.Spec{
		Kind:      sampler.Kind(o.samplerKind),
		NumFrames: o.numFrames,
		Interval:  o.interval,
		Seed:      o.seedPtr(),
	})
	if err != nil {
		return nil, err
	}
	pipeline, err := transform.FromSpec(transform.Spec{
		ResizeWidth:     o.resize,
		ResizeHeight:    o.resize,
		CropSize:        o.crop,
		RandomCrop:      o.randCrop,
		MultiScaleCrop:  o.multiScale,
		FlipProbability: o.flip,
		Rotation:        o.rotation,
		Jitter:          o.jitter,
		Grayscale:       o.grayscale,
		Seed:            o.seedPtr(),
	})
	if err != nil {
		return nil, err
	}
	opts := []dataset.Option{
		dataset.WithSampler(s),
		dataset.WithTransform(pipeline),
		dataset.WithLogger(log),
	}
	reader := ffmpeg.NewReader(ffmpeg.ReaderConfig{}, log)

	switch o.mode {
	case "record":
		rs, err := o.meta.load(log)
		if err != nil {
			return nil, err
		}
		return dataset.NewRecordDataset(o.root, rs, reader, opts...)
	case "folder":
		cats, err := o.meta.labelSet(log)
		if err != nil {
			return nil, err
		}
		if cats != nil {
			opts = append(opts, dataset.WithLabelSet(cats))
		}
		if o.labelByStem {
			opts = append(opts, dataset.WithLabelKey(dataset.FileStem))
		}
		return dataset.NewFolderDataset(cmd.Context(), o.root, reader, opts...)
	case "collage":
		opts = append(opts, dataset.WithTilesPerRow(o.tilesPerRow))
		return dataset.NewCollageDataset(o.root, o.meta.metafile, opts...)
	}
	return nil, fmt.Errorf("unknown mode %q", o.mode)
}

func (o *sampleOptions) run(cmd *cobra.Command, log *zap.Logger) error {
	ds, err := o.build(cmd, log)
	if err != nil {
		return err
	}
	ex, err := ds.Get(cmd.Context(), o.index)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for i, frame := range ex.Clip.Frames {
		name := filepath.Join(o.out, fmt.Sprintf("frame_%04d.png", i))
		if err := imaging.Save(frame, name); err != nil {
			return fmt.Errorf("save frame %d: %w", i, err)
		}
	}

	tensorClip, err := transform.ToTensor{}.Apply(ex.Clip)
	if err != nil {
		return err
	}
	t := tensorClip.Tensor.ToGomlx()
	log.Info("example loaded",
		zap.String("path", ex.Path),
		zap.Ints("indices", ex.Indices),
		zap.Stringer("label", ex.Label),
		zap.Stringer("shape", t.Shape()),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%s label=%s frames=%v tensor=%s -> %s\n",
		ex.Path, ex.Label, ex.Indices, t.Shape(), o.out)
	return nil
}

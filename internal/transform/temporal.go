package transform

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// RandomRotation rotates every frame of a clip by one angle, in degrees,
// drawn uniformly from the configured range. Positive angles turn counter-clockwise.
// Frames keep their size; uncovered corners are filled with black.
type RandomRotation struct {
	degrees [2]float64
	src     *source
}

// NewRandomRotation draws angles from [-degrees, degrees].
func NewRandomRotation(degrees float64, opts ...Option) (*RandomRotation, error) {
	if degrees < 0 {
		return nil, fmt.Errorf("%w: rotation degrees must be non-negative, got %v", entity.ErrInvalidParam, degrees)
	}
	return NewRandomRotationBetween(-degrees, degrees, opts...)
}

func NewRandomRotationBetween(lo, hi float64, opts ...Option) (*RandomRotation, error) {
	if lo > hi {
		return nil, fmt.Errorf("%w: rotation range [%v, %v] is empty", entity.ErrInvalidParam, lo, hi)
	}
	s := applyOptions(opts)
	return &RandomRotation{degrees: [2]float64{lo, hi}, src: newSource(s.seed)}, nil
}

func (r *RandomRotation) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	var angle float64
	r.src.draw(func(rng *rand.Rand) { angle = uniform(rng, r.degrees[0], r.degrees[1]) })
	if angle == 0 {
		return clip, nil
	}
	return mapFrames(clip, func(img image.Image) image.Image {
		b := img.Bounds()
		rotated := imaging.Rotate(img, angle, color.NRGBA{A: 255})
		return imaging.CropCenter(rotated, b.Dx(), b.Dy())
	}), nil
}

// TimeToChannel folds the time axis into the channel axis, turning a
// [C, T, H, W] tensor into [C*T, H, W] for 2D networks. The buffer is not
// copied since the memory layout is the same.
type TimeToChannel struct{}

func (TimeToChannel) Apply(clip Clip) (Clip, error) {
	if clip.Tensor == nil {
		return Clip{}, ErrNoTensor
	}
	in := clip.Tensor
	if in.TimeFolded {
		return clip, nil
	}
	return Clip{Tensor: &Tensor{Data: in.Data, C: in.C * in.T, T: 1, H: in.H, W: in.W, TimeFolded: true}}, nil
}

// TimeApply runs an image operation on every frame independently, so any
// randomness inside op is drawn per frame.
type TimeApply func(image.Image) image.Image

func (op TimeApply) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	return mapFrames(clip, op), nil
}

// MultiScaleCrop crops a region whose sides are picked from Scales times
// the short side of the frame, then resizes it to Width x Height. Width and
// height scales differ by at most MaxDistort steps. With FixedCrops the crop
// is anchored on a grid of corner, edge and centre positions instead of a
// random offset. One crop is drawn per clip.
type MultiScaleCrop struct {
	cfg MultiScaleCropConfig
	src *source
}

type MultiScaleCropConfig struct {
	Width, Height int
	// Scales defaults to 1, .875, .75, .66.
	Scales     []float64
	MaxDistort int
	FixedCrops bool
	// MoreFixedCrops adds edge midpoints and quarter positions to the grid.
	MoreFixedCrops bool
}

// DefaultMultiScaleCrop returns the common configuration: default scales,
// distortion of one step and the extended fixed crop grid.
func DefaultMultiScaleCrop(width, height int) MultiScaleCropConfig {
	return MultiScaleCropConfig{
		Width: width, Height: height,
		MaxDistort: 1, FixedCrops: true, MoreFixedCrops: true,
	}
}

func NewMultiScaleCrop(cfg MultiScaleCropConfig, opts ...Option) (*MultiScaleCrop, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: multi-scale crop size %dx%d", entity.ErrInvalidParam, cfg.Width, cfg.Height)
	}
	if cfg.MaxDistort < 0 {
		return nil, fmt.Errorf("%w: multi-scale crop max distort %d", entity.ErrInvalidParam, cfg.MaxDistort)
	}
	if len(cfg.Scales) == 0 {
		cfg.Scales = []float64{1, .875, .75, .66}
	}
	for _, s := range cfg.Scales {
		if s <= 0 || s > 1 {
			return nil, fmt.Errorf("%w: multi-scale crop scale %v outside (0, 1]", entity.ErrInvalidParam, s)
		}
	}
	s := applyOptions(opts)
	return &MultiScaleCrop{cfg: cfg, src: newSource(s.seed)}, nil
}

// snap replaces crop sides within 3px of the output side by the output side.
func snap(side, target int) int {
	if d := side - target; d > -3 && d < 3 {
		return target
	}
	return side
}

// box picks the crop rectangle relative to the frame origin.
func (c *MultiScaleCrop) box(width, height int) image.Rectangle {
	base := min(width, height)
	sides := make([]int, len(c.cfg.Scales))
	for i, s := range c.cfg.Scales {
		sides[i] = int(float64(base) * s)
	}

	type pair struct{ w, h int }
	var pairs []pair
	for i, h := range sides {
		for j, w := range sides {
			if abs(i-j) <= c.cfg.MaxDistort {
				pairs = append(pairs, pair{w: snap(w, c.cfg.Width), h: snap(h, c.cfg.Height)})
			}
		}
	}

	var out image.Rectangle
	c.src.draw(func(r *rand.Rand) {
		p := pairs[r.Intn(len(pairs))]
		p.w, p.h = min(p.w, width), min(p.h, height)
		var x, y int
		if c.cfg.FixedCrops {
			offsets := c.fixedOffsets(width, height, p.w, p.h)
			o := offsets[r.Intn(len(offsets))]
			x, y = o.X, o.Y
		} else {
			x = r.Intn(width - p.w + 1)
			y = r.Intn(height - p.h + 1)
		}
		out = image.Rect(x, y, x+p.w, y+p.h)
	})
	return out
}

func (c *MultiScaleCrop) fixedOffsets(width, height, cropW, cropH int) []image.Point {
	ws := (width - cropW) / 4
	hs := (height - cropH) / 4
	pts := []image.Point{
		image.Pt(0, 0),
		image.Pt(4*ws, 0),
		image.Pt(0, 4*hs),
		image.Pt(4*ws, 4*hs),
		image.Pt(2*ws, 2*hs),
	}
	if c.cfg.MoreFixedCrops {
		pts = append(pts,
			image.Pt(0, 2*hs),
			image.Pt(4*ws, 2*hs),
			image.Pt(2*ws, 4*hs),
			image.Pt(2*ws, 0),
			image.Pt(ws, hs),
			image.Pt(3*ws, hs),
			image.Pt(ws, 3*hs),
			image.Pt(3*ws, 3*hs),
		)
	}
	return pts
}

func (c *MultiScaleCrop) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	b := clip.Frames[0].Bounds()
	rect := c.box(b.Dx(), b.Dy())
	return mapFrames(clip, func(img image.Image) image.Image {
		cropped := imaging.Crop(img, rect.Add(img.Bounds().Min))
		return imaging.Resize(cropped, c.cfg.Width, c.cfg.Height, imaging.Linear)
	}), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

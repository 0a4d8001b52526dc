package transform

import (
	"fmt"
	"image"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// CenterCrop cuts a Width x Height window from the centre of every frame.
type CenterCrop struct {
	Width, Height int
}

func (c CenterCrop) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	if c.Width <= 0 || c.Height <= 0 {
		return Clip{}, fmt.Errorf("%w: center crop size %dx%d", entity.ErrInvalidParam, c.Width, c.Height)
	}
	return mapFrames(clip, func(img image.Image) image.Image {
		return imaging.CropCenter(img, c.Width, c.Height)
	}), nil
}

// RandomCrop cuts a Width x Height window at a random position, the same
// position for every frame of the clip.
type RandomCrop struct {
	width, height int
	src           *source
}

func NewRandomCrop(width, height int, opts ...Option) (*RandomCrop, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: random crop size %dx%d", entity.ErrInvalidParam, width, height)
	}
	s := applyOptions(opts)
	return &RandomCrop{width: width, height: height, src: newSource(s.seed)}, nil
}

func (c *RandomCrop) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	b := clip.Frames[0].Bounds()
	if b.Dx() < c.width || b.Dy() < c.height {
		return Clip{}, fmt.Errorf("%w: crop %dx%d larger than frame %dx%d",
			entity.ErrInvalidParam, c.width, c.height, b.Dx(), b.Dy())
	}
	var x0, y0 int
	c.src.draw(func(r *rand.Rand) {
		x0 = r.Intn(b.Dx() - c.width + 1)
		y0 = r.Intn(b.Dy() - c.height + 1)
	})
	return mapFrames(clip, func(img image.Image) image.Image {
		origin := img.Bounds().Min
		return imaging.Crop(img, image.Rect(x0, y0, x0+c.width, y0+c.height).Add(origin))
	}), nil
}

// RandomHorizontalFlip mirrors the whole clip with probability P.
type RandomHorizontalFlip struct {
	p   float64
	src *source
}

func NewRandomHorizontalFlip(p float64, opts ...Option) (*RandomHorizontalFlip, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: flip probability must be in [0, 1], got %v", entity.ErrInvalidParam, p)
	}
	s := applyOptions(opts)
	return &RandomHorizontalFlip{p: p, src: newSource(s.seed)}, nil
}

func (f *RandomHorizontalFlip) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	var flip bool
	f.src.draw(func(r *rand.Rand) { flip = r.Float64() < f.p })
	if !flip {
		return clip, nil
	}
	return mapFrames(clip, func(img image.Image) image.Image { return imaging.FlipH(img) }), nil
}

// Resize scales every frame to Width x Height. A zero dimension keeps the
// aspect ratio.
type Resize struct {
	Width, Height int
}

func (r Resize) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	if r.Width < 0 || r.Height < 0 || (r.Width == 0 && r.Height == 0) {
		return Clip{}, fmt.Errorf("%w: resize to %dx%d", entity.ErrInvalidParam, r.Width, r.Height)
	}
	return mapFrames(clip, func(img image.Image) image.Image {
		return imaging.Resize(img, r.Width, r.Height, imaging.Linear)
	}), nil
}

// RandomResizedCrop crops a random area and aspect ratio, then resizes the
// crop to Size x Size. The crop box is drawn once per clip.
type RandomResizedCrop struct {
	size  int
	scale [2]float64
	ratio [2]float64
	src   *source
}

// NewRandomResizedCrop uses the usual defaults: scale [0.08, 1] of the frame
// area and aspect ratio [3/4, 4/3].
func NewRandomResizedCrop(size int, opts ...Option) (*RandomResizedCrop, error) {
	return NewRandomResizedCropWith(size, [2]float64{0.08, 1}, [2]float64{3.0 / 4, 4.0 / 3}, opts...)
}

func NewRandomResizedCropWith(size int, scale, ratio [2]float64, opts ...Option) (*RandomResizedCrop, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: resized crop size %d", entity.ErrInvalidParam, size)
	}
	if scale[0] <= 0 || scale[0] > scale[1] || scale[1] > 1 {
		return nil, fmt.Errorf("%w: resized crop scale %v", entity.ErrInvalidParam, scale)
	}
	if ratio[0] <= 0 || ratio[0] > ratio[1] {
		return nil, fmt.Errorf("%w: resized crop ratio %v", entity.ErrInvalidParam, ratio)
	}
	s := applyOptions(opts)
	return &RandomResizedCrop{size: size, scale: scale, ratio: ratio, src: newSource(s.seed)}, nil
}

// box picks the crop rectangle relative to the frame origin.
func (c *RandomResizedCrop) box(width, height int) image.Rectangle {
	area := float64(width * height)
	logRatio := [2]float64{math.Log(c.ratio[0]), math.Log(c.ratio[1])}

	var out image.Rectangle
	found := false
	c.src.draw(func(r *rand.Rand) {
		for attempt := 0; attempt < 10; attempt++ {
			target := area * uniform(r, c.scale[0], c.scale[1])
			aspect := math.Exp(uniform(r, logRatio[0], logRatio[1]))
			w := int(math.Round(math.Sqrt(target * aspect)))
			h := int(math.Round(math.Sqrt(target / aspect)))
			if w > 0 && h > 0 && w <= width && h <= height {
				x := r.Intn(width - w + 1)
				y := r.Intn(height - h + 1)
				out = image.Rect(x, y, x+w, y+h)
				found = true
				return
			}
		}
	})
	if found {
		return out
	}

	// Fall back to a centre crop clamped to the ratio bounds.
	w, h := width, height
	inRatio := float64(width) / float64(height)
	switch {
	case inRatio < c.ratio[0]:
		h = int(math.Round(float64(w) / c.ratio[0]))
	case inRatio > c.ratio[1]:
		w = int(math.Round(float64(h) * c.ratio[1]))
	}
	x := (width - w) / 2
	y := (height - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func (c *RandomResizedCrop) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	b := clip.Frames[0].Bounds()
	rect := c.box(b.Dx(), b.Dy())
	return mapFrames(clip, func(img image.Image) image.Image {
		cropped := imaging.Crop(img, rect.Add(img.Bounds().Min))
		return imaging.Resize(cropped, c.size, c.size, imaging.Linear)
	}), nil
}

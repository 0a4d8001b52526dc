package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
)

// Amount is a jitter setting: either a scalar spread around the neutral
// value or an explicit [min, max] range.
type Amount struct {
	value   float64
	bounds  [2]float64
	isRange bool
}

// Spread jitters by ±v around the neutral value.
func Spread(v float64) Amount { return Amount{value: v} }

// Between draws factors uniformly from [lo, hi].
func Between(lo, hi float64) Amount { return Amount{bounds: [2]float64{lo, hi}, isRange: true} }

type JitterConfig struct {
	Brightness Amount
	Contrast   Amount
	Saturation Amount
	Hue        Amount
	// Grayscale is the probability of converting the clip to grayscale.
	Grayscale float64
}

// ColorJitter randomly changes brightness, contrast, saturation and hue of a
// clip, then optionally converts it to grayscale. Factors and the order of
// the adjustments are drawn once per clip and shared by every frame.
type ColorJitter struct {
	brightness *[2]float64
	contrast   *[2]float64
	saturation *[2]float64
	hue        *[2]float64
	grayscale  float64
	src        *source
}

func NewColorJitter(cfg JitterConfig, opts ...Option) (*ColorJitter, error) {
	noUpper := [2]float64{0, math.Inf(1)}
	brightness, err := checkAmount(cfg.Brightness, "brightness", 1, noUpper, true)
	if err != nil {
		return nil, err
	}
	contrast, err := checkAmount(cfg.Contrast, "contrast", 1, noUpper, true)
	if err != nil {
		return nil, err
	}
	saturation, err := checkAmount(cfg.Saturation, "saturation", 1, noUpper, true)
	if err != nil {
		return nil, err
	}
	hue, err := checkAmount(cfg.Hue, "hue", 0, [2]float64{-0.5, 0.5}, false)
	if err != nil {
		return nil, err
	}
	if cfg.Grayscale < 0 || cfg.Grayscale > 1 {
		return nil, fmt.Errorf("%w: grayscale probability must be in [0, 1], got %v", entity.ErrInvalidParam, cfg.Grayscale)
	}
	s := applyOptions(opts)
	return &ColorJitter{
		brightness: brightness,
		contrast:   contrast,
		saturation: saturation,
		hue:        hue,
		grayscale:  cfg.Grayscale,
		src:        newSource(s.seed),
	}, nil
}

// checkAmount expands a scalar into a range around center and validates it.
// A nil result disables the adjustment.
func checkAmount(a Amount, name string, center float64, bound [2]float64, clipFirstOnZero bool) (*[2]float64, error) {
	r := a.bounds
	if !a.isRange {
		if a.value < 0 {
			return nil, fmt.Errorf("%w: %s must be non-negative, got %v", entity.ErrInvalidParam, name, a.value)
		}
		r = [2]float64{center - a.value, center + a.value}
		if clipFirstOnZero {
			r[0] = math.Max(r[0], 0)
		}
	}
	if !(bound[0] <= r[0] && r[0] <= r[1] && r[1] <= bound[1]) {
		return nil, fmt.Errorf("%w: %s range %v outside %v", entity.ErrInvalidParam, name, r, bound)
	}
	if r[0] == center && r[1] == center {
		return nil, nil
	}
	return &r, nil
}

type adjustment func(image.Image) image.Image

// params draws one set of adjustments for a clip.
func (j *ColorJitter) params() []adjustment {
	var ops []adjustment
	j.src.draw(func(r *rand.Rand) {
		if j.brightness != nil {
			f := uniform(r, j.brightness[0], j.brightness[1])
			ops = append(ops, func(img image.Image) image.Image { return adjustBrightness(img, f) })
		}
		if j.contrast != nil {
			f := uniform(r, j.contrast[0], j.contrast[1])
			ops = append(ops, func(img image.Image) image.Image { return adjustContrast(img, f) })
		}
		if j.saturation != nil {
			f := uniform(r, j.saturation[0], j.saturation[1])
			ops = append(ops, func(img image.Image) image.Image { return adjustSaturation(img, f) })
		}
		if j.hue != nil {
			f := uniform(r, j.hue[0], j.hue[1])
			ops = append(ops, func(img image.Image) image.Image { return adjustHue(img, f) })
		}
		r.Shuffle(len(ops), func(a, b int) { ops[a], ops[b] = ops[b], ops[a] })
		if r.Float64() < j.grayscale {
			ops = append(ops, func(img image.Image) image.Image { return imaging.Grayscale(img) })
		}
	})
	return ops
}

func (j *ColorJitter) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	ops := j.params()
	if len(ops) == 0 {
		return clip, nil
	}
	return mapFrames(clip, func(img image.Image) image.Image {
		for _, op := range ops {
			img = op(img)
		}
		return img
	}), nil
}

func (j *ColorJitter) String() string {
	return fmt.Sprintf("ColorJitter(brightness=%v, contrast=%v, saturation=%v, hue=%v, grayscale=%v)",
		rangeString(j.brightness), rangeString(j.contrast), rangeString(j.saturation), rangeString(j.hue), j.grayscale)
}

func rangeString(r *[2]float64) string {
	if r == nil {
		return "off"
	}
	return fmt.Sprintf("[%g, %g]", r[0], r[1])
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

func luma(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// blend mixes c with the gray level g: g + f*(c-g).
func blend(c color.NRGBA, g, f float64) color.NRGBA {
	return color.NRGBA{
		R: clamp8(g + f*(float64(c.R)-g)),
		G: clamp8(g + f*(float64(c.G)-g)),
		B: clamp8(g + f*(float64(c.B)-g)),
		A: c.A,
	}
}

func adjustBrightness(img image.Image, f float64) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA { return blend(c, 0, f) })
}

func adjustContrast(img image.Image, f float64) image.Image {
	src := imaging.Clone(img)
	var sum float64
	n := 0
	for i := 0; i+3 < len(src.Pix); i += 4 {
		sum += luma(color.NRGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2]})
		n++
	}
	if n == 0 {
		return src
	}
	mean := math.Round(sum / float64(n))
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA { return blend(c, mean, f) })
}

func adjustSaturation(img image.Image, f float64) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA { return blend(c, luma(c), f) })
}

// adjustHue rotates the hue channel by f turns, f in [-0.5, 0.5].
func adjustHue(img image.Image, f float64) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		h, s, v := rgbToHSV(c)
		h = math.Mod(h+f+1, 1)
		out := hsvToRGB(h, s, v)
		out.A = c.A
		return out
	})
}

func rgbToHSV(c color.NRGBA) (h, s, v float64) {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	v = hi
	d := hi - lo
	if hi == 0 || d == 0 {
		return 0, 0, v
	}
	s = d / hi
	switch hi {
	case r:
		h = (g - b) / d
		if h < 0 {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h / 6, s, v
}

func hsvToRGB(h, s, v float64) color.NRGBA {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.NRGBA{R: clamp8(r * 255), G: clamp8(g * 255), B: clamp8(b * 255)}
}

package transform

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-video-datasets/internal/domain/entity"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Tensor is a dense float32 clip in channel, time, height, width order.
// Training code relies on this axis order. After TimeToChannel, TimeFolded
// is set, T is 1 and the shape is [C, H, W].
type Tensor struct {
	Data       []float32
	C, T, H, W int
	TimeFolded bool
}

func NewTensor(c, t, h, w int) *Tensor {
	return &Tensor{Data: make([]float32, c*t*h*w), C: c, T: t, H: h, W: w}
}

func (t *Tensor) Shape() []int {
	if t.TimeFolded {
		return []int{t.C, t.H, t.W}
	}
	return []int{t.C, t.T, t.H, t.W}
}

func (t *Tensor) offset(c, f, y, x int) int {
	return ((c*t.T+f)*t.H+y)*t.W + x
}

func (t *Tensor) At(c, f, y, x int) float32 { return t.Data[t.offset(c, f, y, x)] }

func (t *Tensor) Set(c, f, y, x int, v float32) { t.Data[t.offset(c, f, y, x)] = v }

// ToGomlx copies the buffer into a gomlx tensor with the same shape.
func (t *Tensor) ToGomlx() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(t.Data, t.Shape()...)
}

// ToTensor converts the decoded frames to a [3, T, H, W] tensor with values
// scaled to [0, 1]. Every frame must have the same size.
type ToTensor struct{}

func (ToTensor) Apply(clip Clip) (Clip, error) {
	if err := requireFrames(clip); err != nil {
		return Clip{}, err
	}
	b := clip.Frames[0].Bounds()
	h, w := b.Dy(), b.Dx()
	out := NewTensor(3, len(clip.Frames), h, w)
	for f, frame := range clip.Frames {
		fb := frame.Bounds()
		if fb.Dx() != w || fb.Dy() != h {
			return Clip{}, fmt.Errorf("%w: frame %d is %dx%d, frame 0 is %dx%d",
				entity.ErrInvalidParam, f, fb.Dx(), fb.Dy(), w, h)
		}
		px := imaging.Clone(frame)
		for y := 0; y < h; y++ {
			row := px.Pix[y*px.Stride:]
			for x := 0; x < w; x++ {
				for c := 0; c < 3; c++ {
					out.Set(c, f, y, x, float32(row[x*4+c])/255)
				}
			}
		}
	}
	return Clip{Tensor: out}, nil
}

// Normalize subtracts Mean and divides by Std per channel.
type Normalize struct {
	Mean, Std []float32
}

func NewNormalize(mean, std []float32) (Normalize, error) {
	if len(mean) == 0 || len(mean) != len(std) {
		return Normalize{}, fmt.Errorf("%w: normalize needs equal-length mean and std, got %d and %d",
			entity.ErrInvalidParam, len(mean), len(std))
	}
	for i, s := range std {
		if s == 0 {
			return Normalize{}, fmt.Errorf("%w: normalize std[%d] is zero", entity.ErrInvalidParam, i)
		}
	}
	return Normalize{Mean: mean, Std: std}, nil
}

func (n Normalize) Apply(clip Clip) (Clip, error) {
	if clip.Tensor == nil {
		return Clip{}, ErrNoTensor
	}
	in := clip.Tensor
	if in.C != len(n.Mean) {
		return Clip{}, fmt.Errorf("%w: normalize has %d channels, tensor has %d", entity.ErrInvalidParam, len(n.Mean), in.C)
	}
	out := &Tensor{Data: make([]float32, len(in.Data)), C: in.C, T: in.T, H: in.H, W: in.W, TimeFolded: in.TimeFolded}
	plane := in.T * in.H * in.W
	for c := 0; c < in.C; c++ {
		for i := c * plane; i < (c+1)*plane; i++ {
			out.Data[i] = (in.Data[i] - n.Mean[c]) / n.Std[c]
		}
	}
	return Clip{Tensor: out}, nil
}

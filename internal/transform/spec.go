package transform

// Spec describes a common training pipeline in configuration terms. Zero
// values leave a step out. MultiScaleCrop replaces the centre or random crop
// by a multi-scale corner crop; Rotation is the largest angle in degrees.
type Spec struct {
	ResizeWidth, ResizeHeight int
	CropSize                  int
	RandomCrop                bool
	MultiScaleCrop            bool
	FlipProbability           float64
	Rotation                  float64
	Jitter                    float64
	Grayscale                 float64
	Tensor                    bool
	Mean, Std                 []float32
	TimeToChannel             bool
	Seed                      *int64
}

// FromSpec builds resize, crop, flip, rotation and jitter steps, in that
// order, followed by tensor conversion, normalisation and time folding when
// requested.
func FromSpec(spec Spec) (*Compose, error) {
	var opts []Option
	if spec.Seed != nil {
		opts = append(opts, WithSeed(*spec.Seed))
	}

	var steps []Step
	if spec.ResizeWidth > 0 || spec.ResizeHeight > 0 {
		steps = append(steps, Frames(Resize{Width: spec.ResizeWidth, Height: spec.ResizeHeight}))
	}
	if spec.CropSize > 0 {
		if spec.MultiScaleCrop {
			mc, err := NewMultiScaleCrop(DefaultMultiScaleCrop(spec.CropSize, spec.CropSize), opts...)
			if err != nil {
				return nil, err
			}
			steps = append(steps, Frames(mc))
		} else if spec.RandomCrop {
			rc, err := NewRandomCrop(spec.CropSize, spec.CropSize, opts...)
			if err != nil {
				return nil, err
			}
			steps = append(steps, Frames(rc))
		} else {
			steps = append(steps, Frames(CenterCrop{Width: spec.CropSize, Height: spec.CropSize}))
		}
	}
	if spec.FlipProbability > 0 {
		flip, err := NewRandomHorizontalFlip(spec.FlipProbability, opts...)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Frames(flip))
	}
	if spec.Rotation > 0 {
		rot, err := NewRandomRotation(spec.Rotation, opts...)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Frames(rot))
	}
	if spec.Jitter > 0 || spec.Grayscale > 0 {
		j, err := NewColorJitter(JitterConfig{
			Brightness: Spread(spec.Jitter),
			Contrast:   Spread(spec.Jitter),
			Saturation: Spread(spec.Jitter),
			Hue:        Spread(min(spec.Jitter, 0.5)),
			Grayscale:  spec.Grayscale,
		}, opts...)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Frames(j))
	}
	if spec.Tensor {
		steps = append(steps, Frames(ToTensor{}))
		if len(spec.Mean) > 0 {
			n, err := NewNormalize(spec.Mean, spec.Std)
			if err != nil {
				return nil, err
			}
			steps = append(steps, Frames(n))
		}
		if spec.TimeToChannel {
			steps = append(steps, Frames(TimeToChannel{}))
		}
	}
	return NewCompose(steps...), nil
}

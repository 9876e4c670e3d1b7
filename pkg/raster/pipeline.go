package raster

import (
	"image"
	"math"
)

// ColorScale selects the intensity transfer function applied to
// normalized pixel values.
type ColorScale uint8

const (
	ScaleLinear ColorScale = iota
	ScaleLog
	ScaleSqrt
	ScaleAsinh
)

// String returns the string representation of the color scale.
func (cs ColorScale) String() string {
	switch cs {
	case ScaleLinear:
		return "linear"
	case ScaleLog:
		return "log"
	case ScaleSqrt:
		return "sqrt"
	case ScaleAsinh:
		return "asinh"
	default:
		return "unknown"
	}
}

// ParseColorScale maps a name to a ColorScale, defaulting to linear.
func ParseColorScale(name string) ColorScale {
	switch name {
	case "log":
		return ScaleLog
	case "sqrt":
		return ScaleSqrt
	case "asinh":
		return ScaleAsinh
	default:
		return ScaleLinear
	}
}

// RenderOptions is the tunable pixel-pipeline configuration. MinValue and
// MaxValue are optional; when NaN they are computed from nonzero samples
// of the reference (red) channel before mapping.
type RenderOptions struct {
	ColorScale ColorScale
	ColorMap   string
	MinValue   float64
	MaxValue   float64
	Brightness float64
	Contrast   float64
}

// DefaultRenderOptions returns linear gray mapping with neutral
// brightness and contrast and auto min/max.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		ColorScale: ScaleLinear,
		ColorMap:   DefaultColorMap,
		MinValue:   math.NaN(),
		MaxValue:   math.NaN(),
		Brightness: 1,
		Contrast:   1,
	}
}

// asinh10 is asinh(10), the asinh scale normalizer.
var asinh10 = math.Asinh(10)

// applyScale applies the configured transfer function to v in [0,1].
func (ro RenderOptions) applyScale(v float64) float64 {
	switch ro.ColorScale {
	case ScaleLog:
		return math.Log1p(v * (math.E - 1))
	case ScaleSqrt:
		return math.Sqrt(v)
	case ScaleAsinh:
		return math.Asinh(10*v) / asinh10
	default:
		return v
	}
}

// referenceRange scans nonzero samples of the reference (red) channel and
// returns their min and max as normalized values. Returns (0, 1) when the
// buffer has no nonzero samples.
func referenceRange(img *image.RGBA) (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for i := 0; i < len(img.Pix); i += 4 {
		r := img.Pix[i]
		if r == 0 {
			continue
		}
		v := float64(r) / 255
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if math.IsInf(min, 1) {
		return 0, 1
	}
	return min, max
}

// applyPipeline runs the per-pixel color pipeline over img in place:
// normalize, transfer function, brightness/contrast, color table. Alpha
// is unchanged.
func applyPipeline(img *image.RGBA, ro RenderOptions, pal *Palette) {
	min, max := ro.MinValue, ro.MaxValue
	if math.IsNaN(min) || math.IsNaN(max) {
		amin, amax := referenceRange(img)
		if math.IsNaN(min) {
			min = amin
		}
		if math.IsNaN(max) {
			max = amax
		}
	}
	span := max - min
	if span <= 0 {
		span = 1
	}

	for i := 0; i < len(img.Pix); i += 4 {
		v := float64(img.Pix[i]) / 255

		// Normalize to [0,1] against the configured or computed range.
		v = (v - min) / span
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}

		v = ro.applyScale(v)

		// Brightness/contrast around mid-gray.
		v = (v-0.5)*ro.Contrast + 0.5 + (ro.Brightness-1)*0.5
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}

		c := pal[uint8(v*255+0.5)]
		img.Pix[i] = c[0]
		img.Pix[i+1] = c[1]
		img.Pix[i+2] = c[2]
		// img.Pix[i+3] (alpha) unchanged.
	}
}

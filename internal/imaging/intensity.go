package imaging

import (
	"errors"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/effect"
	"gonum.org/v1/gonum/stat"
)

// ErrNoValidPixels reports an image with no non-zero pixels to score.
var ErrNoValidPixels = errors.New("no valid pixels")

// RobustMean computes an interquartile-trimmed mean brightness for a
// grayscale micrograph.
//
// Pixels with value exactly 0 are discarded first; after circular masking
// those are the outside-the-sample background. The 25th and 75th percentiles
// of the remaining values are computed with linear interpolation, and only
// pixels inside [p25, p75] inclusive contribute to the mean. Trimming to the
// interquartile range suppresses hot pixels and shadowed edges without
// per-image calibration.
//
// If trimming leaves nothing (degenerate distributions), the mean of all
// non-zero pixels is returned instead. Only a fully zero image fails, with
// ErrNoValidPixels.
//
// Multi-channel inputs are collapsed to grayscale by weighted luma
// conversion; *image.Gray and *image.Gray16 are read directly at native
// bit depth. The result is unrounded; fixed-precision rounding is a
// presentation concern of the export step.
func RobustMean(img image.Image) (float64, error) {
	vals := nonZeroIntensities(img)
	if len(vals) == 0 {
		return 0, ErrNoValidPixels
	}

	sort.Float64s(vals)
	p25 := percentile(vals, 25)
	p75 := percentile(vals, 75)

	filtered := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v >= p25 && v <= p75 {
			filtered = append(filtered, v)
		}
	}

	if len(filtered) == 0 {
		return stat.Mean(vals, nil), nil
	}
	return stat.Mean(filtered, nil), nil
}

// nonZeroIntensities collects every non-zero pixel value as a float.
// Grayscale images are read at native depth (0-255 or 0-65535); anything
// else goes through a luma grayscale conversion first.
func nonZeroIntensities(img image.Image) []float64 {
	bounds := img.Bounds()
	vals := make([]float64, 0, bounds.Dx()*bounds.Dy())

	switch src := img.(type) {
	case *image.Gray:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if v := src.GrayAt(x, y).Y; v > 0 {
					vals = append(vals, float64(v))
				}
			}
		}

	case *image.Gray16:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if v := src.Gray16At(x, y).Y; v > 0 {
					vals = append(vals, float64(v))
				}
			}
		}

	default:
		gray := effect.Grayscale(img)
		gb := gray.Bounds()
		for y := gb.Min.Y; y < gb.Max.Y; y++ {
			for x := gb.Min.X; x < gb.Max.X; x++ {
				if v := gray.RGBAAt(x, y).R; v > 0 {
					vals = append(vals, float64(v))
				}
			}
		}
	}

	return vals
}

// percentile returns the p-th percentile of an ascending-sorted slice using
// linear interpolation between the order statistics at rank p/100*(n-1).
// This is the interpolated convention the reference analysis used, so trim
// boundaries stay reproducible against reference output.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

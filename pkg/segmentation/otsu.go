package segmentation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dicomseg/pkg/volume"
)

// DefaultHistogramBins is the bin count used for Otsu when none is given
const DefaultHistogramBins = 256

// Histogram bins the intensities into equal-width bins over the value range.
// It returns the bin counts and the bins+1 dividers.
func Histogram(vol *volume.Buffer, bins int) (counts, dividers []float64, err error) {
	if bins < 2 {
		return nil, nil, fmt.Errorf("segmentation: need at least 2 histogram bins, got %d", bins)
	}
	min, max := vol.ValueRange()
	if min == max {
		return nil, nil, fmt.Errorf("%w: volume has no intensity variation", ErrClusteringUnavailable)
	}

	dividers = floats.Span(make([]float64, bins+1), min, max)
	// The last divider is exclusive; nudge it so the maximum falls in the last bin.
	dividers[bins] = math.Nextafter(max, math.Inf(1))

	counts = stat.Histogram(nil, dividers, vol.Sorted(), nil)
	return counts, dividers, nil
}

// Otsu returns the intensity that maximises the between-class variance of
// the histogram. Voxels below the threshold form the background class.
func Otsu(vol *volume.Buffer, bins int) (float64, error) {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	hist, dividers, err := Histogram(vol, bins)
	if err != nil {
		return 0, err
	}

	total := floats.Sum(hist)

	sum := 0.0
	for i, c := range hist {
		sum += float64(i) * c
	}

	sumB := 0.0
	wB := 0.0
	maxVariance := 0.0
	best := -1

	for t, c := range hist {
		wB += c
		if wB == 0 {
			continue
		}

		wF := total - wB
		if wF == 0 {
			break
		}

		sumB += float64(t) * c

		mB := sumB / wB
		mF := (sum - sumB) / wF

		varBetween := wB * wF * (mB - mF) * (mB - mF)
		if varBetween > maxVariance {
			maxVariance = varBetween
			best = t
		}
	}

	if best < 0 {
		return 0, fmt.Errorf("%w: histogram has a single populated bin", ErrClusteringUnavailable)
	}

	// Upper edge of the last background bin
	return dividers[best+1], nil
}

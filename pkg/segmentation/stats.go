// Package segmentation derives region statistics from a threshold band and
// provides the automatic threshold helpers (k-means clustering, Otsu and the
// surface threshold).
package segmentation

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"dicomseg/pkg/transfer"
	"dicomseg/pkg/volume"
)

// Stats counts the voxels below, inside (inclusive) and above a threshold band
type Stats struct {
	Lower, Upper float64

	Below   int
	Between int
	Above   int
	Total   int

	BelowPct   float64
	BetweenPct float64
	AbovePct   float64
}

// Compute classifies every voxel exactly once against [lower, upper].
// Below + Between + Above always equals Total.
func Compute(vol *volume.Buffer, lower, upper float64) (Stats, error) {
	if vol == nil {
		return Stats{}, errors.New("segmentation: nil volume")
	}
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return Stats{}, fmt.Errorf("segmentation: invalid thresholds [%v, %v]", lower, upper)
	}
	if lower > upper {
		return Stats{}, fmt.Errorf("segmentation: lower threshold %v above upper %v", lower, upper)
	}

	s := Stats{Lower: lower, Upper: upper, Total: vol.Len()}
	vol.Each(func(_ int, v float64) {
		switch {
		case v < lower:
			s.Below++
		case v > upper:
			s.Above++
		default:
			s.Between++
		}
	})

	total := float64(s.Total)
	s.BelowPct = float64(s.Below) / total * 100
	s.BetweenPct = float64(s.Between) / total * 100
	s.AbovePct = float64(s.Above) / total * 100

	return s, nil
}

// Visibility is the share of the volume shown by a transfer function
type Visibility struct {
	// Visible is the percentage of voxels with non-zero opacity
	Visible float64
	// Weighted is the opacity-weighted percentage of the volume
	Weighted float64
}

// BinaryVisibility reports the band share as visible. The binary band hides
// everything outside [lower, upper], so the cutoff is strict.
func BinaryVisibility(s Stats) Visibility {
	return Visibility{Visible: s.BetweenPct, Weighted: s.BetweenPct}
}

// TriBandVisibility evaluates the transfer function at every voxel. With a
// tri-band function every voxel is at least partially visible, so Visible is
// normally 100 and Weighted carries the useful information.
func TriBandVisibility(vol *volume.Buffer, f transfer.Function) Visibility {
	data := vol.Voxels()
	n := len(data)

	numCores := runtime.NumCPU()
	chunk := (n + numCores - 1) / numCores

	type partial struct {
		visible int
		weight  float64
	}
	parts := make([]partial, numCores)

	var wg sync.WaitGroup
	for c := 0; c < numCores; c++ {
		start := c * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= n {
			break
		}

		wg.Add(1)
		go func(c, start, end int) {
			defer wg.Done()
			var p partial
			for _, v := range data[start:end] {
				o := f.OpacityAt(v)
				if o > 0 {
					p.visible++
				}
				p.weight += o
			}
			parts[c] = p
		}(c, start, end)
	}
	wg.Wait()

	var visible int
	var weight float64
	for _, p := range parts {
		visible += p.visible
		weight += p.weight
	}

	return Visibility{
		Visible:  float64(visible) / float64(n) * 100,
		Weighted: weight / float64(n) * 100,
	}
}

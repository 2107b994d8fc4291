package segmentation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dicomseg/pkg/volume"
)

// ErrClusteringUnavailable is returned when clustering cannot produce a
// meaningful result. It is never fatal: the threshold path keeps working.
var ErrClusteringUnavailable = errors.New("segmentation: clustering unavailable")

// MaxClusters bounds k so that labels fit in a byte
const MaxClusters = 16

// KMeansOptions tunes the 1D Lloyd iterations
type KMeansOptions struct {
	// MaxIter caps the number of assign/update rounds
	MaxIter int
	// SampleSize is the number of voxels used to fit the centres. Labels are
	// always assigned over the full volume.
	SampleSize int
	// Tolerance stops the iterations once no centre moves further than this
	Tolerance float64
}

// DefaultKMeansOptions returns the options used by the pipeline
func DefaultKMeansOptions() KMeansOptions {
	return KMeansOptions{
		MaxIter:    50,
		SampleSize: 200000,
		Tolerance:  1e-3,
	}
}

// Clustering is the result of KMeans. Centers are ascending and Boundaries
// holds the k-1 mid-points between adjacent centres.
type Clustering struct {
	Centers    []float64
	Boundaries []float64
	Counts     []int
	Labels     []uint8
	Iterations int
}

// Label returns the cluster index of an intensity
func (c *Clustering) Label(v float64) int {
	return sort.Search(len(c.Boundaries), func(i int) bool { return v < c.Boundaries[i] })
}

// KMeans partitions the intensities into k clusters. Centres are seeded at
// evenly spaced quantiles of a deterministic voxel sample, so repeated runs
// give identical results. Cancellation is checked between iterations.
func KMeans(ctx context.Context, vol *volume.Buffer, k int, opts KMeansOptions) (*Clustering, error) {
	if k < 2 || k > MaxClusters {
		return nil, fmt.Errorf("%w: k must be in [2, %d], got %d", ErrClusteringUnavailable, MaxClusters, k)
	}
	if vol.Len() < k {
		return nil, fmt.Errorf("%w: %d voxels for %d clusters", ErrClusteringUnavailable, vol.Len(), k)
	}
	if min, max := vol.ValueRange(); min == max {
		return nil, fmt.Errorf("%w: volume has no intensity variation", ErrClusteringUnavailable)
	}

	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultKMeansOptions().MaxIter
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultKMeansOptions().Tolerance
	}

	sample := sampleVoxels(vol, opts.SampleSize)
	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)

	centers := make([]float64, k)
	for i := range centers {
		centers[i] = stat.Quantile((float64(i)+0.5)/float64(k), stat.LinInterp, sorted, nil)
	}
	if !distinct(centers) {
		return nil, fmt.Errorf("%w: fewer than %d distinct intensity levels", ErrClusteringUnavailable, k)
	}

	members := make([][]float64, k)
	prev := make([]float64, k)
	iter := 0

	for iter < opts.MaxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iter++

		bounds := midpoints(centers)
		for i := range members {
			members[i] = members[i][:0]
		}
		for _, v := range sorted {
			i := sort.Search(len(bounds), func(j int) bool { return v < bounds[j] })
			members[i] = append(members[i], v)
		}

		copy(prev, centers)
		for i, m := range members {
			// Empty clusters keep their previous centre
			if len(m) > 0 {
				centers[i] = stat.Mean(m, nil)
			}
		}
		sort.Float64s(centers)

		if floats.Distance(prev, centers, math.Inf(1)) <= opts.Tolerance {
			break
		}
	}

	if !distinct(centers) {
		return nil, fmt.Errorf("%w: clusters collapsed after %d iterations", ErrClusteringUnavailable, iter)
	}

	c := &Clustering{
		Centers:    centers,
		Boundaries: midpoints(centers),
		Counts:     make([]int, k),
		Labels:     make([]uint8, vol.Len()),
		Iterations: iter,
	}
	vol.Each(func(i int, v float64) {
		l := c.Label(v)
		c.Labels[i] = uint8(l)
		c.Counts[l]++
	})

	return c, nil
}

// sampleVoxels takes every step-th voxel so that at most n values are kept
func sampleVoxels(vol *volume.Buffer, n int) []float64 {
	total := vol.Len()
	if n <= 0 || n >= total {
		return vol.Voxels()
	}

	step := total / n
	out := make([]float64, 0, n+1)
	vol.Each(func(i int, v float64) {
		if i%step == 0 {
			out = append(out, v)
		}
	})
	return out
}

func midpoints(centers []float64) []float64 {
	b := make([]float64, len(centers)-1)
	for i := range b {
		b[i] = (centers[i] + centers[i+1]) / 2
	}
	return b
}

// distinct reports whether the ascending values are strictly increasing
func distinct(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return false
		}
	}
	return true
}

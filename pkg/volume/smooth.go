package volume

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Smooth applies a separable Gaussian filter with the given standard deviation
// in voxels along every axis. The kernel radius is ceil(2*sigma) and borders
// are clamped. A sigma of zero returns the buffer unchanged.
func (b *Buffer) Smooth(sigma float64) (*Buffer, error) {
	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("volume: smoothing sigma must be a non-negative number, got %v", sigma)
	}
	if sigma == 0 {
		return b, nil
	}

	kernel := gaussianKernel(sigma)
	nx, ny := b.dims.NX, b.dims.NY
	planeSize := nx * ny

	passes := []struct {
		axis, n, stride int
	}{
		{0, b.dims.NX, 1},
		{1, b.dims.NY, nx},
		{2, b.dims.NZ, planeSize},
	}

	src := b.data
	filtered := false
	for _, p := range passes {
		if p.n < 2 {
			continue
		}
		dst := make([]float64, len(src))
		forEachPlane(b.dims.NZ, func(z int) {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					idx := z*planeSize + y*nx + x
					pos := [3]int{x, y, z}[p.axis]
					sum := 0.0
					for k, w := range kernel {
						off := clampInt(pos+k-len(kernel)/2, 0, p.n-1) - pos
						sum += w * src[idx+off*p.stride]
					}
					dst[idx] = sum
				}
			}
		})
		src = dst
		filtered = true
	}

	if !filtered {
		return b, nil
	}
	return newBuffer(src, b.dims, b.spacing), nil
}

// MedianFilter replaces each voxel by the median of its in-plane
// (2*radius+1)^2 neighbourhood. Slices are filtered independently.
func (b *Buffer) MedianFilter(radius int) (*Buffer, error) {
	if radius < 0 {
		return nil, fmt.Errorf("volume: median radius must be non-negative, got %d", radius)
	}
	if radius == 0 {
		return b, nil
	}

	nx, ny := b.dims.NX, b.dims.NY
	planeSize := nx * ny
	out := make([]float64, len(b.data))

	forEachPlane(b.dims.NZ, func(z int) {
		window := make([]float64, 0, (2*radius+1)*(2*radius+1))
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				window = window[:0]
				for j := y - radius; j <= y+radius; j++ {
					if j < 0 || j >= ny {
						continue
					}
					for i := x - radius; i <= x+radius; i++ {
						if i < 0 || i >= nx {
							continue
						}
						window = append(window, b.data[z*planeSize+j*nx+i])
					}
				}
				out[z*planeSize+y*nx+x] = median(window)
			}
		}
	})

	return newBuffer(out, b.dims, b.spacing), nil
}

// forEachPlane runs fn for every z in [0, nz), splitting the planes across the
// available cores
func forEachPlane(nz int, fn func(z int)) {
	var wg sync.WaitGroup
	numCores := runtime.NumCPU()
	planesPerCore := (nz + numCores - 1) / numCores

	for c := 0; c < numCores; c++ {
		start := c * planesPerCore
		end := start + planesPerCore
		if end > nz {
			end = nz
		}
		if start >= nz {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for z := start; z < end; z++ {
				fn(z)
			}
		}(start, end)
	}
	wg.Wait()
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(2 * sigma))
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// median sorts values in place and returns their median
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

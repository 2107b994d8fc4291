package volume

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/montanaflynn/stats"
)

// Window clips intensities to [center-width/2, center+width/2] and rescales
// them to 0..255, the way a display window maps Hounsfield units to gray
// levels. A lung window is center -600, width 1500.
func (b *Buffer) Window(center, width float64) (*Buffer, error) {
	if width <= 0 {
		return nil, fmt.Errorf("volume: window width must be positive, got %v", width)
	}

	lo := center - width/2
	hi := center + width/2

	out := make([]float64, len(b.data))
	for i, v := range b.data {
		v = math.Max(lo, math.Min(hi, v))
		out[i] = math.Floor((v - lo) / (hi - lo) * 255)
	}

	return newBuffer(out, b.dims, b.spacing), nil
}

// Downsample keeps every step-th voxel along x and y. Slices are kept intact.
// Spacing grows accordingly.
func (b *Buffer) Downsample(step int) (*Buffer, error) {
	if step < 1 {
		return nil, fmt.Errorf("volume: downsample step must be >= 1, got %d", step)
	}
	if step == 1 {
		return b, nil
	}

	nx := (b.dims.NX + step - 1) / step
	ny := (b.dims.NY + step - 1) / step
	out := make([]float64, nx*ny*b.dims.NZ)

	for z := 0; z < b.dims.NZ; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				out[z*nx*ny+y*nx+x] = b.At(x*step, y*step, z)
			}
		}
	}

	spacing := b.spacing
	spacing.X *= float64(step)
	spacing.Y *= float64(step)

	return newBuffer(out, Dims{NX: nx, NY: ny, NZ: b.dims.NZ}, spacing), nil
}

// ResampleZ inserts factor-1 linearly interpolated planes between each pair of
// consecutive slices, producing (NZ-1)*factor+1 planes. The work is split
// across the available cores.
func (b *Buffer) ResampleZ(factor int) (*Buffer, error) {
	if factor < 1 {
		return nil, fmt.Errorf("volume: resample factor must be >= 1, got %d", factor)
	}
	if factor == 1 || b.dims.NZ < 2 {
		return b, nil
	}

	numSlices := b.dims.NZ
	planeSize := b.dims.NX * b.dims.NY
	totalDepth := (numSlices-1)*factor + 1
	out := make([]float64, planeSize*totalDepth)

	var wg sync.WaitGroup
	numCores := runtime.NumCPU()
	slicesPerCore := (numSlices + numCores - 1) / numCores

	for c := 0; c < numCores; c++ {
		startSlice := c * slicesPerCore
		endSlice := startSlice + slicesPerCore
		if endSlice > numSlices {
			endSlice = numSlices
		}
		if startSlice >= numSlices {
			break
		}

		wg.Add(1)
		go func(startSlice, endSlice int) {
			defer wg.Done()

			for i := startSlice; i < endSlice; i++ {
				src := b.data[i*planeSize : (i+1)*planeSize]
				zPos := i * factor
				copy(out[zPos*planeSize:(zPos+1)*planeSize], src)

				if i == numSlices-1 {
					continue
				}

				next := b.data[(i+1)*planeSize : (i+2)*planeSize]
				for z := 1; z < factor; z++ {
					t := float64(z) / float64(factor)
					dst := out[(zPos+z)*planeSize : (zPos+z+1)*planeSize]
					for j := range dst {
						dst[j] = (1-t)*src[j] + t*next[j]
					}
				}
			}
		}(startSlice, endSlice)
	}
	wg.Wait()

	spacing := b.spacing
	spacing.Z /= float64(factor)

	return newBuffer(out, Dims{NX: b.dims.NX, NY: b.dims.NY, NZ: totalDepth}, spacing), nil
}

// Summary describes the intensity distribution of a volume
type Summary struct {
	Min, Max float64
	Mean     float64
	Median   float64
	StdDev   float64
	Voxels   int
}

// Summary computes descriptive statistics of the intensities
func (b *Buffer) Summary() (Summary, error) {
	data := stats.Float64Data(b.data)

	mean, err := data.Mean()
	if err != nil {
		return Summary{}, fmt.Errorf("volume: mean: %w", err)
	}
	sd, err := data.StandardDeviation()
	if err != nil {
		return Summary{}, fmt.Errorf("volume: standard deviation: %w", err)
	}

	return Summary{
		Min:    b.min,
		Max:    b.max,
		Mean:   mean,
		Median: b.Percentile(50),
		StdDev: sd,
		Voxels: len(b.data),
	}, nil
}

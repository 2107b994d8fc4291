// Package volume holds the stacked 3D scalar grid built from an ordered series
// of 2D slices. A Buffer is immutable once constructed and can be shared
// read-only by any number of sessions.
package volume

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dicomseg/internal/models"
)

// Dims are the grid dimensions in voxels
type Dims struct {
	NX, NY, NZ int
}

// Len returns the total voxel count
func (d Dims) Len() int {
	return d.NX * d.NY * d.NZ
}

// Contains reports whether (x, y, z) lies inside the grid
func (d Dims) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < d.NX && y < d.NY && z < d.NZ
}

// Buffer is a 3D scalar volume stored as a 1D array in row-major order:
// index = z*NX*NY + y*NX + x.
type Buffer struct {
	data    []float64
	dims    Dims
	spacing models.Spacing
	min     float64
	max     float64

	sortOnce sync.Once
	sorted   []float64
}

// Option configures Load
type Option func(*loadOptions)

type loadOptions struct {
	spacing       models.Spacing
	thoraxSpacing bool
}

// WithSpacing overrides the spacing found in the slice metadata
func WithSpacing(s models.Spacing) Option {
	return func(o *loadOptions) { o.spacing = s }
}

// WithThoraxSpacing forces a z spacing of 2.5 mm when the reported spacing is
// below 2 mm, which restores plausible chest proportions for thin-slice series
// that report the reconstruction interval instead of the acquisition one.
func WithThoraxSpacing() Option {
	return func(o *loadOptions) { o.thoraxSpacing = true }
}

// Load stacks the given slices (already in spatial order) into a Buffer.
// All slices must share the same 2D shape.
func Load(slices []models.Slice, opts ...Option) (*Buffer, error) {
	if len(slices) == 0 {
		return nil, ErrEmptyInput
	}

	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	rows, cols := slices[0].Rows, slices[0].Cols
	if rows <= 0 || cols <= 0 {
		return nil, &ShapeMismatchError{Index: 0, WantRows: rows, WantCols: cols, GotRows: rows, GotCols: cols, GotPixels: len(slices[0].Pixels)}
	}

	planeSize := rows * cols
	data := make([]float64, planeSize*len(slices))
	spacing := o.spacing

	for z, s := range slices {
		if s.Rows != rows || s.Cols != cols || len(s.Pixels) != planeSize {
			return nil, &ShapeMismatchError{
				Index:     z,
				WantRows:  rows,
				WantCols:  cols,
				GotRows:   s.Rows,
				GotCols:   s.Cols,
				GotPixels: len(s.Pixels),
			}
		}
		copy(data[z*planeSize:(z+1)*planeSize], s.Pixels)

		if spacing.IsZero() && !s.Spacing.IsZero() {
			spacing = s.Spacing
		}
	}

	spacing = completeSpacing(spacing)
	if o.thoraxSpacing && spacing.Z < 2.0 {
		spacing.Z = 2.5
	}

	return newBuffer(data, Dims{NX: cols, NY: rows, NZ: len(slices)}, spacing), nil
}

// New wraps an existing row-major array. The array is copied.
func New(data []float64, dims Dims, spacing models.Spacing) (*Buffer, error) {
	if dims.NX <= 0 || dims.NY <= 0 || dims.NZ <= 0 {
		return nil, ErrEmptyInput
	}
	if len(data) != dims.Len() {
		return nil, fmt.Errorf("volume: data length %d does not match dimensions %dx%dx%d",
			len(data), dims.NX, dims.NY, dims.NZ)
	}

	cp := make([]float64, len(data))
	copy(cp, data)
	return newBuffer(cp, dims, completeSpacing(spacing)), nil
}

func newBuffer(data []float64, dims Dims, spacing models.Spacing) *Buffer {
	return &Buffer{
		data:    data,
		dims:    dims,
		spacing: spacing,
		min:     floats.Min(data),
		max:     floats.Max(data),
	}
}

// completeSpacing fills axes missing from the metadata with the defaults
func completeSpacing(s models.Spacing) models.Spacing {
	if s.X <= 0 {
		s.X = models.DefaultSpacing.X
	}
	if s.Y <= 0 {
		s.Y = models.DefaultSpacing.Y
	}
	if s.Z <= 0 {
		s.Z = models.DefaultSpacing.Z
	}
	return s
}

// Dimensions returns the grid size
func (b *Buffer) Dimensions() Dims {
	return b.dims
}

// Spacing returns the physical voxel spacing in mm
func (b *Buffer) Spacing() models.Spacing {
	return b.spacing
}

// ValueRange returns the minimum and maximum intensity of the volume
func (b *Buffer) ValueRange() (min, max float64) {
	return b.min, b.max
}

// Len returns the total voxel count
func (b *Buffer) Len() int {
	return len(b.data)
}

// Sample returns the intensity at (x, y, z). Access outside the grid fails with
// an *IndexOutOfRangeError.
func (b *Buffer) Sample(x, y, z int) (float64, error) {
	if !b.dims.Contains(x, y, z) {
		return 0, &IndexOutOfRangeError{X: x, Y: y, Z: z, Dims: b.dims}
	}
	return b.data[b.index(x, y, z)], nil
}

// At is the unchecked variant of Sample for hot loops that already iterate
// within the grid. It panics outside the grid.
func (b *Buffer) At(x, y, z int) float64 {
	return b.data[b.index(x, y, z)]
}

func (b *Buffer) index(x, y, z int) int {
	return z*b.dims.NX*b.dims.NY + y*b.dims.NX + x
}

// Each calls fn for every voxel in storage order
func (b *Buffer) Each(fn func(i int, v float64)) {
	for i, v := range b.data {
		fn(i, v)
	}
}

// Voxels returns a copy of the voxel array in storage order
func (b *Buffer) Voxels() []float64 {
	cp := make([]float64, len(b.data))
	copy(cp, b.data)
	return cp
}

// Plane returns a copy of the axial plane at depth z
func (b *Buffer) Plane(z int) ([]float64, error) {
	if z < 0 || z >= b.dims.NZ {
		return nil, &IndexOutOfRangeError{X: 0, Y: 0, Z: z, Dims: b.dims}
	}
	size := b.dims.NX * b.dims.NY
	out := make([]float64, size)
	copy(out, b.data[z*size:(z+1)*size])
	return out, nil
}

// Sorted returns the voxel intensities in ascending order. The sorted copy is
// built once and shared; callers must not modify it.
func (b *Buffer) Sorted() []float64 {
	b.sortOnce.Do(func() {
		b.sorted = b.Voxels()
		sort.Float64s(b.sorted)
	})
	return b.sorted
}

// Percentile returns the p-th percentile (p in [0, 100]) of the intensities
// using linear interpolation between order statistics.
func (b *Buffer) Percentile(p float64) float64 {
	p = math.Max(0, math.Min(100, p))
	return stat.Quantile(p/100, stat.LinInterp, b.Sorted(), nil)
}

package volume

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned by Load when no slices were supplied
var ErrEmptyInput = errors.New("volume: no slices provided")

// ShapeMismatchError reports a slice whose 2D size differs from the first slice
// of the series, or whose pixel count does not match its own rows and columns
type ShapeMismatchError struct {
	Index              int
	WantRows, WantCols int
	GotRows, GotCols   int
	// GotPixels is the length of the slice's pixel array
	GotPixels int
}

func (e *ShapeMismatchError) Error() string {
	if e.GotRows == e.WantRows && e.GotCols == e.WantCols {
		return fmt.Sprintf("volume: slice %d holds %d pixels, expected %d for shape %dx%d",
			e.Index, e.GotPixels, e.WantRows*e.WantCols, e.WantRows, e.WantCols)
	}
	return fmt.Sprintf("volume: slice %d has shape %dx%d, expected %dx%d",
		e.Index, e.GotRows, e.GotCols, e.WantRows, e.WantCols)
}

// IndexOutOfRangeError reports an access outside the voxel grid
type IndexOutOfRangeError struct {
	X, Y, Z int
	Dims    Dims
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("volume: voxel (%d,%d,%d) outside grid %dx%dx%d",
		e.X, e.Y, e.Z, e.Dims.NX, e.Dims.NY, e.Dims.NZ)
}

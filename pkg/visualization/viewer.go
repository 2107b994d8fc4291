// Package visualization turns a volume and its transfer function into images:
// grayscale and colorised slices, a preview montage, a console histogram and
// a chart of the transfer function curves.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"dicomseg/internal/models"
	"dicomseg/pkg/volume"
)

// Viewer extracts 2D planes from a volume
type Viewer struct {
	// vol is the shared, read-only volume
	vol *volume.Buffer

	// lo and hi are the intensity range mapped to black and white
	lo, hi float64
}

// NewViewer creates a viewer that maps the full value range of the volume to
// the gray scale
func NewViewer(vol *volume.Buffer) *Viewer {
	lo, hi := vol.ValueRange()
	return &Viewer{vol: vol, lo: lo, hi: hi}
}

// plane describes one 2D cut through the volume
type plane struct {
	width, height int
	at            func(u, v int) float64
}

// planeAt returns the plane of the given axis at position. The x axis gives a
// YZ plane (width = depth), y an XZ plane and z the usual axial XY plane.
func (v *Viewer) planeAt(axis models.Axis, position int) (plane, error) {
	if position < 0 {
		return plane{}, fmt.Errorf("position must be non-negative")
	}

	d := v.vol.Dimensions()
	switch axis {
	case models.AxisX:
		if position >= d.NX {
			return plane{}, fmt.Errorf("position %d exceeds width %d", position, d.NX)
		}
		return plane{width: d.NZ, height: d.NY, at: func(u, w int) float64 { return v.vol.At(position, w, u) }}, nil

	case models.AxisY:
		if position >= d.NY {
			return plane{}, fmt.Errorf("position %d exceeds height %d", position, d.NY)
		}
		return plane{width: d.NX, height: d.NZ, at: func(u, w int) float64 { return v.vol.At(u, position, w) }}, nil

	case models.AxisZ:
		if position >= d.NZ {
			return plane{}, fmt.Errorf("position %d exceeds depth %d", position, d.NZ)
		}
		data, err := v.vol.Plane(position)
		if err != nil {
			return plane{}, err
		}
		return plane{width: d.NX, height: d.NY, at: func(u, w int) float64 { return data[w*d.NX+u] }}, nil

	default:
		return plane{}, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// axisLength returns the number of planes along an axis
func (v *Viewer) axisLength(axis models.Axis) (int, error) {
	d := v.vol.Dimensions()
	switch axis {
	case models.AxisX:
		return d.NX, nil
	case models.AxisY:
		return d.NY, nil
	case models.AxisZ:
		return d.NZ, nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis as
// a 16-bit grayscale image scaled to the volume's value range
func (v *Viewer) ExtractSlice(axis models.Axis, position int) (image.Image, error) {
	p, err := v.planeAt(axis, position)
	if err != nil {
		return nil, err
	}

	span := v.hi - v.lo
	if span == 0 {
		span = 1
	}

	img := image.NewGray16(image.Rect(0, 0, p.width, p.height))
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			norm := (p.at(x, y) - v.lo) / span
			value := uint16(math.Max(0, math.Min(65535, norm*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}

	return img, nil
}

// SaveSlice saves an extracted slice; the format follows the file extension
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return imaging.Save(img, filename, imaging.JPEGQuality(90))
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis models.Axis, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	maxPos, err := v.axisLength(axis)
	if err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

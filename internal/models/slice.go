package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Spacing is the physical distance between voxel centres along each axis in mm
type Spacing struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// DefaultSpacing is used when a series carries no spacing metadata. The values
// are typical for an axial chest CT.
var DefaultSpacing = Spacing{X: 0.7, Y: 0.7, Z: 2.5}

// IsZero reports whether no spacing information is present
func (s Spacing) IsZero() bool {
	return s.X == 0 && s.Y == 0 && s.Z == 0
}

// Slice represents a single 2D slice of a volume with metadata
type Slice struct {
	// Pixels holds the intensities in row-major order (len == Rows*Cols)
	Pixels []float64

	// Rows and Cols are the 2D dimensions of the slice
	Rows int
	Cols int

	// Index is the position of this slice in the sequence
	Index int

	// Filename is the original filename of the slice
	Filename string

	// Spacing is the physical spacing reported by the slice metadata.
	// Z holds the slice thickness. Zero when the metadata was absent.
	Spacing Spacing
}

// At returns the intensity at column x, row y
func (s Slice) At(x, y int) float64 {
	return s.Pixels[y*s.Cols+x]
}

// NewSlice creates a slice from a row-major pixel grid
func NewSlice(pixels []float64, rows, cols int) Slice {
	return Slice{
		Pixels: pixels,
		Rows:   rows,
		Cols:   cols,
	}
}

// Axis names one of the three volume axes
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// ParseAxis accepts upper or lower case axis names
func ParseAxis(s string) (Axis, bool) {
	switch s {
	case "x", "X":
		return AxisX, true
	case "y", "Y":
		return AxisY, true
	case "z", "Z":
		return AxisZ, true
	}
	return "", false
}

// ParseAxes parses a comma separated axis list such as "z" or "x,y,z".
// Duplicates are dropped.
func ParseAxes(list string) ([]Axis, error) {
	var axes []Axis
	seen := make(map[Axis]bool)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, ok := ParseAxis(part)
		if !ok {
			return nil, fmt.Errorf("invalid axis %q (must be x, y, or z)", part)
		}
		if !seen[a] {
			seen[a] = true
			axes = append(axes, a)
		}
	}
	return axes, nil
}

// ParseSpacing parses "x,y,z" in mm. A single value applies to every axis.
func ParseSpacing(s string) (Spacing, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 1 && len(parts) != 3 {
		return Spacing{}, fmt.Errorf("spacing %q: expected one value or x,y,z", s)
	}
	vals := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v <= 0 {
			return Spacing{}, fmt.Errorf("spacing %q: %q is not a positive number", s, part)
		}
		vals[i] = v
	}
	if len(vals) == 1 {
		return Spacing{X: vals[0], Y: vals[0], Z: vals[0]}, nil
	}
	return Spacing{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

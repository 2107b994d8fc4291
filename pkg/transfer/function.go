// Package transfer maps scalar intensities to render opacity and color.
//
// A Function is a pair of piecewise-linear curves: one from intensity to
// opacity and one from intensity to RGB. Control points are strictly
// increasing in intensity; between points values are linearly interpolated and
// outside the point range they clamp to the nearest endpoint.
package transfer

import (
	"fmt"
	"math"
	"sort"
)

// OpacityPoint is a single (intensity, opacity) control point
type OpacityPoint struct {
	X       float64
	Opacity float64
}

// RGB is a color with each channel in [0, 1]
type RGB struct {
	R, G, B float64
}

// ColorPoint is a single (intensity, R, G, B) control point
type ColorPoint struct {
	X float64
	RGB
}

// Function is a scalar-to-opacity and scalar-to-color mapping
type Function struct {
	Opacity []OpacityPoint
	Color   []ColorPoint
}

// OpacityAt evaluates the opacity curve at v
func (f Function) OpacityAt(v float64) float64 {
	pts := f.Opacity
	n := len(pts)
	if n == 0 {
		return 0
	}
	if v <= pts[0].X {
		return pts[0].Opacity
	}
	if v >= pts[n-1].X {
		return pts[n-1].Opacity
	}

	// First point strictly greater than v; v lies in [pts[i-1].X, pts[i].X).
	i := sort.Search(n, func(i int) bool { return pts[i].X > v })
	a, b := pts[i-1], pts[i]
	t := (v - a.X) / (b.X - a.X)
	return a.Opacity + t*(b.Opacity-a.Opacity)
}

// ColorAt evaluates the color curve at v
func (f Function) ColorAt(v float64) RGB {
	pts := f.Color
	n := len(pts)
	if n == 0 {
		return RGB{}
	}
	if v <= pts[0].X {
		return pts[0].RGB
	}
	if v >= pts[n-1].X {
		return pts[n-1].RGB
	}

	i := sort.Search(n, func(i int) bool { return pts[i].X > v })
	a, b := pts[i-1], pts[i]
	t := (v - a.X) / (b.X - a.X)
	return RGB{
		R: a.R + t*(b.R-a.R),
		G: a.G + t*(b.G-a.G),
		B: a.B + t*(b.B-a.B),
	}
}

// Validate checks the interpolation contract: intensities strictly increasing
// and every value within [0, 1]
func (f Function) Validate() error {
	for i, p := range f.Opacity {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
			return fmt.Errorf("transfer: opacity point %d has invalid intensity %v", i, p.X)
		}
		if i > 0 && p.X <= f.Opacity[i-1].X {
			return fmt.Errorf("transfer: opacity point %d at %v does not increase past %v", i, p.X, f.Opacity[i-1].X)
		}
		if !inUnit(p.Opacity) {
			return fmt.Errorf("transfer: opacity point %d has opacity %v outside [0,1]", i, p.Opacity)
		}
	}

	for i, p := range f.Color {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
			return fmt.Errorf("transfer: color point %d has invalid intensity %v", i, p.X)
		}
		if i > 0 && p.X <= f.Color[i-1].X {
			return fmt.Errorf("transfer: color point %d at %v does not increase past %v", i, p.X, f.Color[i-1].X)
		}
		if !inUnit(p.R) || !inUnit(p.G) || !inUnit(p.B) {
			return fmt.Errorf("transfer: color point %d has channel outside [0,1]: %+v", i, p.RGB)
		}
	}

	return nil
}

// Equal reports whether both functions have identical control points
func (f Function) Equal(o Function) bool {
	if len(f.Opacity) != len(o.Opacity) || len(f.Color) != len(o.Color) {
		return false
	}
	for i := range f.Opacity {
		if f.Opacity[i] != o.Opacity[i] {
			return false
		}
	}
	for i := range f.Color {
		if f.Color[i] != o.Color[i] {
			return false
		}
	}
	return true
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// builder accumulates control points and drops any point that would not
// strictly increase the intensity of its curve
type builder struct {
	fn Function
}

func (b *builder) opacity(x, o float64) {
	n := len(b.fn.Opacity)
	if n > 0 && x <= b.fn.Opacity[n-1].X {
		return
	}
	b.fn.Opacity = append(b.fn.Opacity, OpacityPoint{X: x, Opacity: o})
}

func (b *builder) color(x float64, c RGB) {
	n := len(b.fn.Color)
	if n > 0 && x <= b.fn.Color[n-1].X {
		return
	}
	b.fn.Color = append(b.fn.Color, ColorPoint{X: x, RGB: c})
}

// point adds an opacity and a color point at the same intensity
func (b *builder) point(x, o float64, c RGB) {
	b.opacity(x, o)
	b.color(x, c)
}

func (b *builder) build() (Function, error) {
	if err := b.fn.Validate(); err != nil {
		return Function{}, err
	}
	return b.fn, nil
}

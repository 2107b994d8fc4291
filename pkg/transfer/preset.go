package transfer

import (
	"fmt"
	"sort"
)

// preset is a fixed set of control points plus the values used at the data
// endpoints
type preset struct {
	opacity []OpacityPoint
	color   []ColorPoint

	lowOpacity, highOpacity float64
	lowColor, highColor     RGB
}

// alternative-scheme opacity shared by medical, hot and cool
var altOpacity = []OpacityPoint{
	{-500, 0}, {-200, 0.2}, {50, 0.4}, {200, 0.7}, {500, 0.9},
}

var presets = map[string]preset{
	"medical": {
		opacity: altOpacity,
		color: []ColorPoint{
			{-750, RGB{0.1, 0.1, 0.4}},
			{-200, RGB{0.2, 0.5, 0.8}},
			{0, RGB{0.7, 0.7, 0.7}},
			{100, RGB{1, 0.6, 0.3}},
			{300, RGB{1, 0.4, 0.1}},
			{600, RGB{1, 0.9, 0.6}},
		},
		lowOpacity: 0, highOpacity: 1,
		lowColor: RGB{0, 0, 0}, highColor: RGB{1, 1, 1},
	},
	"hot": {
		opacity: altOpacity,
		color: []ColorPoint{
			{-200, RGB{0.3, 0, 0}},
			{0, RGB{0.8, 0.3, 0}},
			{100, RGB{1, 0.7, 0}},
			{300, RGB{1, 0.9, 0.3}},
			{600, RGB{1, 1, 0.8}},
		},
		lowOpacity: 0, highOpacity: 1,
		lowColor: RGB{0, 0, 0}, highColor: RGB{1, 1, 1},
	},
	"cool": {
		opacity: altOpacity,
		color: []ColorPoint{
			{-200, RGB{0, 0.2, 0.5}},
			{0, RGB{0.2, 0.5, 0.8}},
			{100, RGB{0.4, 0.7, 1}},
			{300, RGB{0.6, 0.8, 1}},
			{600, RGB{0.8, 0.9, 1}},
		},
		lowOpacity: 0, highOpacity: 1,
		lowColor: RGB{0, 0, 0}, highColor: RGB{1, 1, 1},
	},
	// Hounsfield map for lung parenchyma
	"lung": {
		opacity: []OpacityPoint{
			{-1024, 0}, {-900, 0}, {-800, 0.1}, {-700, 0.3}, {-600, 0.5},
			{-500, 0.8}, {-200, 1}, {100, 1}, {1000, 1},
		},
		color: []ColorPoint{
			{-1024, RGB{0, 0, 0}},
			{-900, RGB{0.1, 0.1, 0.3}},
			{-800, RGB{0.2, 0.3, 0.6}},
			{-700, RGB{0.4, 0.5, 0.8}},
			{-600, RGB{0.8, 0.8, 0.9}},
			{-500, RGB{0.9, 0.7, 0.3}},
			{-200, RGB{0.9, 0.5, 0.2}},
			{100, RGB{0.8, 0.8, 0.8}},
			{1000, RGB{1, 1, 1}},
		},
		lowOpacity: 0, highOpacity: 1,
		lowColor: RGB{0, 0, 0}, highColor: RGB{1, 1, 1},
	},
	// 8-bit map for volumes that went through a display window
	"windowed": {
		opacity: []OpacityPoint{
			{0, 0}, {30, 0}, {60, 0.05}, {100, 0.2}, {150, 0.5}, {220, 1},
		},
		color: []ColorPoint{
			{0, RGB{0, 0, 0}},
			{60, RGB{0.3, 0.6, 0.9}},
			{100, RGB{0.6, 0.8, 1}},
			{150, RGB{1, 0.8, 0.6}},
			{220, RGB{1, 1, 1}},
		},
		lowOpacity: 0, highOpacity: 1,
		lowColor: RGB{0, 0, 0}, highColor: RGB{1, 1, 1},
	},
}

// PresetNames lists the available static presets in alphabetical order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preset returns a static transfer function fitted to the data range.
// Control points outside (r.Min, r.Max) are dropped and the data endpoints
// are added with the preset's low and high values.
func Preset(name string, r Range) (Function, error) {
	p, ok := presets[name]
	if !ok {
		return Function{}, fmt.Errorf("transfer: unknown preset %q", name)
	}
	if !r.valid() {
		return Function{}, fmt.Errorf("transfer: invalid data range %+v", r)
	}

	var b builder

	b.opacity(r.Min, p.lowOpacity)
	for _, pt := range p.opacity {
		if pt.X > r.Min && pt.X < r.Max {
			b.opacity(pt.X, pt.Opacity)
		}
	}
	b.opacity(r.Max, p.highOpacity)

	b.color(r.Min, p.lowColor)
	for _, pt := range p.color {
		if pt.X > r.Min && pt.X < r.Max {
			b.color(pt.X, pt.RGB)
		}
	}
	b.color(r.Max, p.highColor)

	return b.build()
}

// Windowed is a soft-tissue style function for a display window: transparent
// outside the window, peaking in gray at its centre.
func Windowed(center, width float64, r Range) (Function, error) {
	if width <= 0 {
		return Function{}, fmt.Errorf("transfer: window width must be positive, got %v", width)
	}
	if !r.valid() {
		return Function{}, fmt.Errorf("transfer: invalid data range %+v", r)
	}

	lo := center - width/2
	hi := center + width/2

	var b builder
	if r.Min < lo {
		b.point(r.Min, 0, black)
	}
	b.point(lo, 0, black)
	b.point(center, 0.3, RGB{0.8, 0.8, 0.8})
	b.point(hi, 0, RGB{1, 1, 1})
	if r.Max > hi {
		b.point(r.Max, 0, RGB{1, 1, 1})
	}

	return b.build()
}

package transfer

import (
	"fmt"
	"math"
	"sort"
)

// MinSpan is the narrowest sub-range, in intensity units, that still gets its
// own gradient. Narrower sub-ranges are skipped.
const MinSpan = 1.0

// Opacity levels of the binary band
const (
	bandEdgeOpacity = 0.7
	bandPeakOpacity = 0.9
)

// Colors of the binary band sweep, from lower to upper
var bandSweep = [5]RGB{
	{0, 0, 1},   // azure
	{0, 0.8, 1}, // cyan
	{0, 1, 0},   // green
	{1, 1, 0},   // yellow
	{1, 0, 0},   // red
}

var black = RGB{}

// Interior fractions of each tri-band sub-gradient
var gradientFractions = [5]float64{0.1, 0.3, 0.5, 0.7, 0.9}

var (
	coldGradient = [5]RGB{
		{0.0, 0.0, 0.3},
		{0.0, 0.2, 0.6},
		{0.1, 0.4, 0.8},
		{0.2, 0.6, 0.9},
		{0.4, 0.8, 1.0},
	}
	neutralGradient = [5]RGB{
		{0.5, 0.5, 0.5},
		{0.7, 0.7, 0.7},
		{0.9, 0.8, 0.6},
		{1.0, 0.7, 0.4},
		{1.0, 0.55, 0.2},
	}
	hotGradient = [5]RGB{
		{0.8, 0.1, 0.0},
		{1.0, 0.3, 0.0},
		{1.0, 0.6, 0.0},
		{1.0, 0.85, 0.2},
		{1.0, 1.0, 0.6},
	}
)

// Tri-band opacity levels
const (
	triFloorOpacity = 0.15
	triColdOpacity  = 0.3
	triEdgeOpacity  = 0.8
	triPeakOpacity  = 0.9
	triHotOpacity   = 0.5
	triTopOpacity   = 0.4
)

// Cluster plateau colors, assigned in ascending centre order
var clusterPalette = []RGB{
	{0.1, 0.2, 0.6},
	{0.2, 0.7, 0.3},
	{0.95, 0.8, 0.2},
	{0.9, 0.4, 0.1},
	{0.8, 0.1, 0.1},
	{0.7, 0.3, 0.8},
	{0.3, 0.8, 0.9},
	{0.9, 0.9, 0.9},
}

const (
	clusterInOpacity  = 0.8
	clusterOutOpacity = 0.05
)

// Regenerate builds a fresh Function for the given scheme, threshold band and
// data range. The result always has strictly increasing control points; the
// same inputs always produce an identical Function.
func Regenerate(s Scheme, th Thresholds, r Range) (Function, error) {
	if math.IsNaN(th.Lower) || math.IsNaN(th.Upper) || math.IsInf(th.Lower, 0) || math.IsInf(th.Upper, 0) {
		return Function{}, fmt.Errorf("transfer: invalid thresholds %+v", th)
	}
	if th.Lower > th.Upper {
		return Function{}, fmt.Errorf("transfer: lower threshold %v above upper %v", th.Lower, th.Upper)
	}
	if !r.valid() {
		return Function{}, fmt.Errorf("transfer: invalid data range %+v", r)
	}

	switch s.Kind {
	case BinaryBand:
		return binaryBand(th, r)
	case TriBand:
		return triBand(th, r)
	case ClusterBased:
		return clusterBased(s.Centers, th, r)
	default:
		return Function{}, fmt.Errorf("transfer: unsupported scheme %v", s.Kind)
	}
}

// binaryBand hides everything outside [lower-1, upper+1] and sweeps
// azure to red across the band
func binaryBand(th Thresholds, r Range) (Function, error) {
	var b builder

	below := th.Lower - 1
	above := th.Upper + 1

	if r.Min < below {
		b.point(r.Min, 0, black)
	}
	b.point(below, 0, black)

	if th.Span() == 0 {
		b.point(th.Lower, bandPeakOpacity, bandSweep[2])
	} else {
		span := th.Span()
		b.point(th.Lower, bandEdgeOpacity, bandSweep[0])
		b.color(th.Lower+0.25*span, bandSweep[1])
		b.point(th.Mid(), bandPeakOpacity, bandSweep[2])
		b.color(th.Lower+0.75*span, bandSweep[3])
		b.point(th.Upper, bandEdgeOpacity, bandSweep[4])
	}

	b.point(above, 0, black)
	if r.Max > above {
		b.point(r.Max, 0, black)
	}

	return b.build()
}

// triBand concatenates cold, neutral and hot gradients over [min, lower],
// [lower, upper] and [upper, max]. Sub-ranges narrower than MinSpan are
// skipped.
func triBand(th Thresholds, r Range) (Function, error) {
	var b builder

	cold := th.Lower - r.Min
	hot := r.Max - th.Upper

	// Opacity ramp
	if cold >= MinSpan {
		b.opacity(r.Min, triFloorOpacity)
		b.opacity(r.Min+0.5*cold, triColdOpacity)
	}
	if th.Span() == 0 {
		b.opacity(th.Lower, triPeakOpacity)
	} else {
		b.opacity(th.Lower, triEdgeOpacity)
		b.opacity(th.Mid(), triPeakOpacity)
		b.opacity(th.Upper, triEdgeOpacity)
	}
	if hot >= MinSpan {
		b.opacity(th.Upper+0.5*hot, triHotOpacity)
		b.opacity(r.Max, triTopOpacity)
	}

	// Color gradients
	if cold >= MinSpan {
		gradient(&b, r.Min, cold, coldGradient)
	}
	switch {
	case th.Span() == 0:
		b.color(th.Lower, neutralGradient[2])
	case th.Span() < MinSpan:
		b.color(th.Mid(), neutralGradient[2])
	default:
		gradient(&b, th.Lower, th.Span(), neutralGradient)
	}
	if hot >= MinSpan {
		gradient(&b, th.Upper, hot, hotGradient)
	}

	return b.build()
}

func gradient(b *builder, start, span float64, colors [5]RGB) {
	for i, f := range gradientFractions {
		b.color(start+f*span, colors[i])
	}
}

// clusterBased gives every cluster a flat color plateau between the
// mid-points to its neighbours. Clusters whose centre lies in the band are
// emphasised.
func clusterBased(centers []float64, th Thresholds, r Range) (Function, error) {
	if len(centers) < 2 {
		return Function{}, fmt.Errorf("transfer: cluster scheme needs at least 2 centres, got %d", len(centers))
	}
	for _, c := range centers {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Function{}, fmt.Errorf("transfer: invalid cluster centre %v", c)
		}
	}

	c := append([]float64(nil), centers...)
	sort.Float64s(c)
	bounds := Scheme{Kind: ClusterBased, Centers: c}.Boundaries()

	var b builder
	for i, center := range c {
		lo, hi := r.Min, r.Max
		if i > 0 {
			lo = bounds[i-1]
		}
		if i < len(bounds) {
			hi = bounds[i]
		}

		o := clusterOutOpacity
		if center >= th.Lower && center <= th.Upper {
			o = clusterInOpacity
		}
		col := clusterPalette[i%len(clusterPalette)]

		w := hi - lo
		if w < MinSpan {
			b.point((lo+hi)/2, o, col)
			continue
		}
		b.point(lo+0.1*w, o, col)
		b.point(hi-0.1*w, o, col)
	}

	return b.build()
}

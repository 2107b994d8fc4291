package transfer

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind selects the coloring scheme used to build a Function from thresholds
type Kind int

const (
	// BinaryBand shows only the [lower, upper] band with a single color sweep
	BinaryBand Kind = iota
	// TriBand concatenates cold, neutral and hot gradients and never hides
	// anything completely
	TriBand
	// ClusterBased colors each intensity cluster with its own plateau
	ClusterBased
)

func (k Kind) String() string {
	switch k {
	case BinaryBand:
		return "binary"
	case TriBand:
		return "tri-band"
	case ClusterBased:
		return "clusters"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts the names produced by Kind.String plus a few aliases
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "binary-band", "band", "single":
		return BinaryBand, nil
	case "tri-band", "triband", "tri", "multi":
		return TriBand, nil
	case "clusters", "cluster", "kmeans":
		return ClusterBased, nil
	}
	return 0, fmt.Errorf("transfer: unknown scheme %q", s)
}

// Scheme is the tagged variant driving Regenerate. Centers is only used by
// ClusterBased and holds the cluster centres in any order.
type Scheme struct {
	Kind    Kind
	Centers []float64
}

// Boundaries returns the mid-points between adjacent sorted cluster centres
func (s Scheme) Boundaries() []float64 {
	if len(s.Centers) < 2 {
		return nil
	}
	c := append([]float64(nil), s.Centers...)
	sort.Float64s(c)

	b := make([]float64, len(c)-1)
	for i := range b {
		b[i] = (c[i] + c[i+1]) / 2
	}
	return b
}

// Thresholds is the [Lower, Upper] band currently selected
type Thresholds struct {
	Lower, Upper float64
}

// Mid returns the centre of the band
func (t Thresholds) Mid() float64 {
	return (t.Lower + t.Upper) / 2
}

// Span returns the width of the band
func (t Thresholds) Span() float64 {
	return t.Upper - t.Lower
}

// Range is the intensity range of the data the function is built for
type Range struct {
	Min, Max float64
}

func (r Range) valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) &&
		!math.IsInf(r.Min, 0) && !math.IsInf(r.Max, 0) && r.Min <= r.Max
}

// Package threshold holds the lower/upper threshold state of a segmentation
// session and keeps the transfer function and region statistics derived from
// it in sync.
//
// The invariant lower <= upper holds at all times; both values always lie
// within the value range of the volume. Every setter regenerates the
// transfer function and statistics before returning.
package threshold

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"dicomseg/pkg/segmentation"
	"dicomseg/pkg/transfer"
	"dicomseg/pkg/volume"
)

// DegenerateVolumeError is returned when a volume has no intensity variation
// to threshold over
type DegenerateVolumeError struct {
	Value float64
}

func (e *DegenerateVolumeError) Error() string {
	return fmt.Sprintf("threshold: volume has a single intensity %v, nothing to threshold", e.Value)
}

// Default percentile pairs per scheme
const (
	BinaryLowerPercentile = 30
	BinaryUpperPercentile = 90
	TriLowerPercentile    = 25
	TriUpperPercentile    = 75
)

// Options customises Initialize. Zero values select the scheme defaults.
type Options struct {
	// LowerPercentile and UpperPercentile override the default pair when both
	// are set
	LowerPercentile float64
	UpperPercentile float64
	Logger          zerolog.Logger
}

// Model is the mutable threshold state of one session. It is not safe for
// concurrent use; a session drives it from a single event loop.
type Model struct {
	vol    *volume.Buffer
	scheme transfer.Scheme
	rng    transfer.Range
	opts   Options
	log    zerolog.Logger

	defLower, defUpper float64

	lower, upper float64
	tf           transfer.Function
	stats        segmentation.Stats
	visible      segmentation.Visibility
}

// Initialize creates a Model with data-dependent defaults for the scheme.
// The binary band starts at the 30th/90th percentiles and the tri band at the
// 25th/75th. The cluster scheme starts on the band between the first and last
// cluster boundary, falling back to the 25th/75th percentiles.
func Initialize(vol *volume.Buffer, scheme transfer.Scheme, opts ...Options) (*Model, error) {
	if vol == nil {
		return nil, fmt.Errorf("threshold: nil volume")
	}
	min, max := vol.ValueRange()
	if min == max {
		return nil, &DegenerateVolumeError{Value: min}
	}

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	m := &Model{
		vol:    vol,
		scheme: scheme,
		rng:    transfer.Range{Min: min, Max: max},
		opts:   o,
		log:    o.Logger.With().Str("component", "threshold").Logger(),
	}

	lower, upper := m.defaults()
	m.defLower, m.defUpper = m.clamp(lower), m.clamp(upper)
	if m.defLower > m.defUpper {
		m.defLower, m.defUpper = m.defUpper, m.defLower
	}

	m.lower, m.upper = m.defLower, m.defUpper
	if err := m.refresh(); err != nil {
		return nil, err
	}

	m.log.Debug().
		Str("scheme", scheme.Kind.String()).
		Float64("lower", m.lower).
		Float64("upper", m.upper).
		Msg("threshold model initialized")

	return m, nil
}

func (m *Model) defaults() (float64, float64) {
	if m.opts.LowerPercentile > 0 && m.opts.UpperPercentile > 0 {
		return m.vol.Percentile(m.opts.LowerPercentile), m.vol.Percentile(m.opts.UpperPercentile)
	}

	switch m.scheme.Kind {
	case transfer.BinaryBand:
		return m.vol.Percentile(BinaryLowerPercentile), m.vol.Percentile(BinaryUpperPercentile)
	case transfer.ClusterBased:
		if b := m.scheme.Boundaries(); len(b) >= 2 {
			return b[0], b[len(b)-1]
		}
	}
	return m.vol.Percentile(TriLowerPercentile), m.vol.Percentile(TriUpperPercentile)
}

func (m *Model) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return m.rng.Min
	}
	return math.Max(m.rng.Min, math.Min(m.rng.Max, v))
}

// SetLower clamps v to [min, upper], applies it and returns the value
// actually applied
func (m *Model) SetLower(v float64) float64 {
	applied := math.Min(m.clamp(v), m.upper)
	if applied == m.lower {
		return applied
	}

	prev := m.lower
	m.lower = applied
	if err := m.refresh(); err != nil {
		m.log.Error().Err(err).Float64("lower", applied).Msg("regeneration failed, keeping previous lower threshold")
		m.lower = prev
		_ = m.refresh()
		return prev
	}
	return applied
}

// SetUpper clamps v to [lower, max], applies it and returns the value
// actually applied
func (m *Model) SetUpper(v float64) float64 {
	applied := math.Max(m.clamp(v), m.lower)
	if applied == m.upper {
		return applied
	}

	prev := m.upper
	m.upper = applied
	if err := m.refresh(); err != nil {
		m.log.Error().Err(err).Float64("upper", applied).Msg("regeneration failed, keeping previous upper threshold")
		m.upper = prev
		_ = m.refresh()
		return prev
	}
	return applied
}

// Reset restores the scheme defaults computed at initialization
func (m *Model) Reset() {
	m.lower, m.upper = m.defLower, m.defUpper
	if err := m.refresh(); err != nil {
		m.log.Error().Err(err).Msg("regeneration failed on reset")
	}
}

// refresh regenerates the transfer function, stats and visibility from the
// current thresholds
func (m *Model) refresh() error {
	th := transfer.Thresholds{Lower: m.lower, Upper: m.upper}

	tf, err := transfer.Regenerate(m.scheme, th, m.rng)
	if err != nil {
		return err
	}
	st, err := segmentation.Compute(m.vol, m.lower, m.upper)
	if err != nil {
		return err
	}

	m.tf = tf
	m.stats = st
	if m.scheme.Kind == transfer.BinaryBand {
		m.visible = segmentation.BinaryVisibility(st)
	} else {
		m.visible = segmentation.TriBandVisibility(m.vol, tf)
	}
	return nil
}

// Lower returns the current lower threshold
func (m *Model) Lower() float64 { return m.lower }

// Upper returns the current upper threshold
func (m *Model) Upper() float64 { return m.upper }

// Defaults returns the thresholds Reset restores
func (m *Model) Defaults() (lower, upper float64) { return m.defLower, m.defUpper }

// Scheme returns the active coloring scheme
func (m *Model) Scheme() transfer.Scheme { return m.scheme }

// Range returns the value range of the volume
func (m *Model) Range() transfer.Range { return m.rng }

// Volume returns the volume the model thresholds
func (m *Model) Volume() *volume.Buffer { return m.vol }

// Transfer returns the transfer function for the current thresholds
func (m *Model) Transfer() transfer.Function { return m.tf }

// Stats returns the region statistics for the current thresholds
func (m *Model) Stats() segmentation.Stats { return m.stats }

// Visible returns the scheme-specific visibility for the current thresholds
func (m *Model) Visible() segmentation.Visibility { return m.visible }

package segmentation

import (
	"dicomseg/pkg/volume"
)

// SurfacePercentile is the percentile used as the automatic iso-surface level
const SurfacePercentile = 70

// SurfaceThreshold returns the automatic iso-surface level of a volume
func SurfaceThreshold(vol *volume.Buffer) float64 {
	return vol.Percentile(SurfacePercentile)
}

// SweepRow is the outcome of segmenting the volume at one candidate level.
// Everything at or above Threshold counts as selected.
type SweepRow struct {
	Threshold   float64 `csv:"threshold"`
	Selected    int     `csv:"selected_voxels"`
	SelectedPct float64 `csv:"selected_pct"`
	Below       int     `csv:"below_voxels"`
	BelowPct    float64 `csv:"below_pct"`
}

// Sweep segments the volume at each candidate threshold. A nil candidate list
// uses the 50th to 90th percentiles in steps of 10.
func Sweep(vol *volume.Buffer, thresholds []float64) ([]SweepRow, error) {
	if len(thresholds) == 0 {
		for p := 50.0; p <= 90; p += 10 {
			thresholds = append(thresholds, vol.Percentile(p))
		}
	}

	_, max := vol.ValueRange()
	rows := make([]SweepRow, 0, len(thresholds))
	for _, th := range thresholds {
		upper := max
		if th > upper {
			upper = th
		}
		s, err := Compute(vol, th, upper)
		if err != nil {
			return nil, err
		}
		rows = append(rows, SweepRow{
			Threshold:   th,
			Selected:    s.Between + s.Above,
			SelectedPct: s.BetweenPct + s.AbovePct,
			Below:       s.Below,
			BelowPct:    s.BelowPct,
		})
	}

	return rows, nil
}

// Package dicomio discovers, orders and decodes the DICOM slices of a series
// from a local directory or a Google Storage prefix.
package dicomio

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"dicomseg/internal/models"
	"dicomseg/pkg/volume"
)

// Options controls which files of a series are loaded
type Options struct {
	// MaxSlices subsamples the series evenly to at most this many slices.
	// Zero loads everything.
	MaxSlices int

	// SkipFirst drops the first file, which some exports use for a study
	// information image
	SkipFirst bool

	Logger zerolog.Logger
}

// SliceFailure records a slice that could not be decoded
type SliceFailure struct {
	Name string
	Err  error
}

// LoadReport accounts for every candidate file of a load
type LoadReport struct {
	Source   string
	Found    int
	Selected int
	Loaded   int
	Failed   []SliceFailure
}

func (r LoadReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d files found, %d selected, %d loaded, %d failed",
		r.Source, r.Found, r.Selected, r.Loaded, len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "\n  %s: %v", f.Name, f.Err)
	}
	return b.String()
}

// Load reads the slices of a series in spatial order.
//
// Files that fail to decode are skipped and recorded in the report; the load
// only fails when no slice at all could be read.
//
// Parameters:
//   - ctx: cancels the load between slices
//   - src: where the slice files live
//   - opts: subsampling and logging options
//
// Returns:
//   - The decoded slices, the load report, and an error wrapping
//     volume.ErrEmptyInput when nothing could be loaded
func Load(ctx context.Context, src Source, opts Options) ([]models.Slice, LoadReport, error) {
	log := opts.Logger.With().Str("component", "dicomio").Logger()
	report := LoadReport{Source: src.String()}

	entries, err := src.List(ctx)
	if err != nil {
		return nil, report, err
	}

	candidates := Discover(entries)
	report.Found = len(candidates)
	if len(candidates) == 0 {
		return nil, report, fmt.Errorf("dicomio: no DICOM files in %s: %w", src, volume.ErrEmptyInput)
	}

	selected := selectSlices(candidates, opts.SkipFirst, opts.MaxSlices)
	report.Selected = len(selected)
	log.Info().
		Int("found", report.Found).
		Int("selected", report.Selected).
		Str("source", report.Source).
		Msg("reading slices")

	slices := make([]models.Slice, 0, len(selected))
	for _, e := range selected {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		s, err := readEntry(ctx, src, e.Name)
		if err != nil {
			report.Failed = append(report.Failed, SliceFailure{Name: e.Name, Err: err})
			log.Warn().Err(err).Str("file", e.Name).Msg("skipping slice")
			continue
		}
		s.Index = len(slices)
		s.Filename = e.Name
		slices = append(slices, s)
	}
	report.Loaded = len(slices)

	if len(slices) == 0 {
		return nil, report, fmt.Errorf("dicomio: none of %d files in %s could be read: %w",
			report.Selected, src, volume.ErrEmptyInput)
	}

	log.Info().
		Int("loaded", report.Loaded).
		Int("failed", len(report.Failed)).
		Int("rows", slices[0].Rows).
		Int("cols", slices[0].Cols).
		Msg("slices loaded")

	return slices, report, nil
}

func readEntry(ctx context.Context, src Source, name string) (models.Slice, error) {
	rc, size, err := src.Open(ctx, name)
	if err != nil {
		return models.Slice{}, err
	}
	defer rc.Close()

	return ReadSlice(rc, size)
}

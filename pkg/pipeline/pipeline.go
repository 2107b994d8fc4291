// Package pipeline runs a series from its DICOM files to an initialised
// threshold model: loading, volume preparation, optional clustering, and the
// preview, chart and export files requested alongside.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"dicomseg/internal/models"
	"dicomseg/pkg/config"
	"dicomseg/pkg/dicomio"
	"dicomseg/pkg/export"
	"dicomseg/pkg/segmentation"
	"dicomseg/pkg/threshold"
	"dicomseg/pkg/transfer"
	"dicomseg/pkg/visualization"
	"dicomseg/pkg/volume"
)

// Outputs selects the optional files written by Process
type Outputs struct {
	// Dir receives every output file. It is created when needed.
	Dir string

	// Preview writes preview.png, a montage of axial slices colored by the
	// initial transfer function
	Preview bool

	// Histogram prints a console histogram of the intensities to HistogramOut
	Histogram    bool
	HistogramOut io.Writer

	// NPY writes the prepared volume as volume.npy
	NPY bool

	// Labels writes the k-means label map as labels.npy (clusters scheme only)
	Labels bool

	// Chart writes transfer.png with the initial transfer function and, when
	// the preset names one, preset.png with its static color preset
	Chart bool

	// Sweep writes sweep.csv with the voxel counts at each sweep percentile
	Sweep bool

	// Slices saves every grayscale plane along each listed axis as
	// slice_<axis>_NNN.jpg under SlicesDir/<axis>. SlicesDir defaults to
	// Dir/slices.
	Slices    []models.Axis
	SlicesDir string
}

// Params holds the pipeline parameters.
type Params struct {
	// Input is a directory or a gs://bucket/prefix holding the series
	Input string

	// Config supplies loading, segmentation and output settings.
	// A nil Config uses config.DefaultConfig.
	Config *config.Config

	// PresetName selects the preset; empty selects the configured default
	PresetName string

	// Scheme overrides the preset's scheme when set
	Scheme string

	// MaxSlices and SkipFirst override the configured loading options when
	// MaxSlices is non-zero or SkipFirst is set
	MaxSlices int
	SkipFirst bool

	// Spacing replaces the configured and file spacing when non-zero
	Spacing models.Spacing

	Outputs Outputs

	Logger zerolog.Logger
}

// Result is what a run produces
type Result struct {
	// Report accounts for the files of the series (empty for ProcessVolume)
	Report dicomio.LoadReport

	// Volume is the prepared volume the model segments
	Volume *volume.Buffer

	// Summary describes its intensity distribution
	Summary volume.Summary

	// Model holds the initial thresholds and the derived transfer function
	Model *threshold.Model

	// Clustering is set when the clusters scheme ran successfully
	Clustering *segmentation.Clustering

	// Otsu and Surface are the automatic threshold suggestions
	Otsu    float64
	Surface float64

	// Sweep holds the threshold sweep rows when requested
	Sweep []segmentation.SweepRow

	// Files lists every output file written. Slice sequences are listed by
	// their directory.
	Files []string
}

// Pipeline runs one series through the segmentation stages
type Pipeline struct {
	params *Params
	cfg    *config.Config
	log    zerolog.Logger
}

// New creates a pipeline with the provided parameters.
//
// Parameters:
//   - params: input location, preset selection and requested outputs
//
// Returns:
//   - A Pipeline ready to Process
func New(params *Params) *Pipeline {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Pipeline{
		params: params,
		cfg:    cfg,
		log:    params.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// Process loads the series named by Params.Input and runs the remaining stages
func (p *Pipeline) Process(ctx context.Context) (*Result, error) {
	src, err := dicomio.NewSource(ctx, p.params.Input)
	if err != nil {
		return nil, err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	opts := dicomio.Options{
		MaxSlices: p.cfg.Loading.MaxSlices,
		SkipFirst: p.cfg.Loading.SkipFirst,
		Logger:    p.params.Logger,
	}
	if p.params.MaxSlices != 0 {
		opts.MaxSlices = p.params.MaxSlices
	}
	if p.params.SkipFirst {
		opts.SkipFirst = true
	}

	p.log.Info().Str("input", src.String()).Msg("Step 1: loading slices")
	slices, report, err := dicomio.Load(ctx, src, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load slices: %w", err)
	}
	if len(report.Failed) > 0 {
		p.log.Warn().Int("failed", len(report.Failed)).Msg(report.String())
	}

	res, err := p.ProcessSlices(ctx, slices)
	if err != nil {
		return nil, err
	}
	res.Report = report
	return res, nil
}

// ProcessSlices stacks already decoded slices and runs the remaining stages
func (p *Pipeline) ProcessSlices(ctx context.Context, slices []models.Slice) (*Result, error) {
	preset, err := p.cfg.Preset(p.params.PresetName)
	if err != nil {
		return nil, err
	}

	var opts []volume.Option
	spacing := p.cfg.Loading.Spacing
	if !p.params.Spacing.IsZero() {
		spacing = p.params.Spacing
	}
	if !spacing.IsZero() {
		p.log.Debug().Interface("spacing", spacing).Msg("overriding slice spacing")
		opts = append(opts, volume.WithSpacing(spacing))
	}
	if preset.ThoraxSpacing {
		opts = append(opts, volume.WithThoraxSpacing())
	}
	vol, err := volume.Load(slices, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build volume: %w", err)
	}
	return p.ProcessVolume(ctx, vol)
}

// ProcessVolume prepares a volume and initialises the threshold model on it
func (p *Pipeline) ProcessVolume(ctx context.Context, vol *volume.Buffer) (*Result, error) {
	preset, err := p.cfg.Preset(p.params.PresetName)
	if err != nil {
		return nil, err
	}

	p.log.Info().Msg("Step 2: preparing volume")
	vol, err = p.prepare(vol, preset)
	if err != nil {
		return nil, err
	}

	res := &Result{Volume: vol}
	if res.Summary, err = vol.Summary(); err != nil {
		return nil, err
	}
	p.log.Info().
		Interface("dims", vol.Dimensions()).
		Float64("min", res.Summary.Min).
		Float64("max", res.Summary.Max).
		Float64("mean", res.Summary.Mean).
		Msg("volume ready")

	p.log.Info().Msg("Step 3: choosing thresholds")
	scheme, err := p.scheme(ctx, vol, preset, res)
	if err != nil {
		return nil, err
	}

	res.Model, err = threshold.Initialize(vol, scheme, threshold.Options{
		LowerPercentile: preset.LowerPercentile,
		UpperPercentile: preset.UpperPercentile,
		Logger:          p.params.Logger,
	})
	if err != nil {
		return nil, err
	}

	if res.Otsu, err = segmentation.Otsu(vol, p.cfg.Segmentation.HistogramBins); err != nil {
		p.log.Warn().Err(err).Msg("otsu threshold unavailable")
	}
	res.Surface = segmentation.SurfaceThreshold(vol)

	p.log.Info().Msg("Step 4: writing outputs")
	if err := p.writeOutputs(res, preset); err != nil {
		return nil, err
	}

	return res, nil
}

// prepare downsamples, resamples along z, filters and windows the volume, in
// that order, as configured
func (p *Pipeline) prepare(vol *volume.Buffer, preset config.Preset) (*volume.Buffer, error) {
	var err error
	if limit := p.cfg.Loading.DownsampleAbove; limit > 0 && vol.Dimensions().NY > limit {
		p.log.Debug().Int("rows", vol.Dimensions().NY).Int("limit", limit).Msg("downsampling slices")
		if vol, err = vol.Downsample(2); err != nil {
			return nil, fmt.Errorf("failed to downsample volume: %w", err)
		}
	}
	if f := p.cfg.Loading.ResampleZ; f > 1 {
		if vol, err = vol.ResampleZ(f); err != nil {
			return nil, fmt.Errorf("failed to resample volume: %w", err)
		}
	}
	if preset.MedianRadius > 0 {
		if vol, err = vol.MedianFilter(preset.MedianRadius); err != nil {
			return nil, fmt.Errorf("failed to filter volume: %w", err)
		}
	}
	if preset.Smooth > 0 {
		if vol, err = vol.Smooth(preset.Smooth); err != nil {
			return nil, fmt.Errorf("failed to smooth volume: %w", err)
		}
	}
	if preset.ApplyWindow {
		if vol, err = vol.Window(preset.WindowCenter, preset.WindowWidth); err != nil {
			return nil, fmt.Errorf("failed to window volume: %w", err)
		}
	}
	return vol, nil
}

// scheme resolves the coloring scheme, running k-means for the clusters scheme.
// A volume that cannot be clustered falls back to the tri-band scheme.
func (p *Pipeline) scheme(ctx context.Context, vol *volume.Buffer, preset config.Preset, res *Result) (transfer.Scheme, error) {
	name := preset.Scheme
	if p.params.Scheme != "" {
		name = p.params.Scheme
	}
	kind, err := transfer.ParseKind(name)
	if err != nil {
		return transfer.Scheme{}, err
	}
	if kind != transfer.ClusterBased {
		return transfer.Scheme{Kind: kind}, nil
	}

	k := preset.Clusters
	if k == 0 {
		k = 3
	}
	opts := segmentation.DefaultKMeansOptions()
	if n := p.cfg.Segmentation.KMeansIterations; n > 0 {
		opts.MaxIter = n
	}
	if n := p.cfg.Segmentation.KMeansSample; n > 0 {
		opts.SampleSize = n
	}

	c, err := segmentation.KMeans(ctx, vol, k, opts)
	switch {
	case errors.Is(err, segmentation.ErrClusteringUnavailable):
		p.log.Warn().Err(err).Msg("clustering unavailable, using tri-band scheme")
		return transfer.Scheme{Kind: transfer.TriBand}, nil
	case err != nil:
		return transfer.Scheme{}, err
	}

	p.log.Info().
		Floats64("centers", c.Centers).
		Int("iterations", c.Iterations).
		Msg("k-means converged")
	res.Clustering = c
	return transfer.Scheme{Kind: transfer.ClusterBased, Centers: c.Centers}, nil
}

func (p *Pipeline) writeOutputs(res *Result, preset config.Preset) error {
	out := p.params.Outputs
	viewer := visualization.NewViewer(res.Volume)

	if out.Histogram && out.HistogramOut != nil {
		if err := viewer.FprintHistogram(out.HistogramOut, 0, 0); err != nil {
			p.log.Warn().Err(err).Msg("failed to print histogram")
		}
	}

	if out.Sweep {
		var levels []float64
		for _, pct := range p.cfg.Segmentation.SweepPercentiles {
			levels = append(levels, res.Volume.Percentile(pct))
		}
		rows, err := segmentation.Sweep(res.Volume, levels)
		if err != nil {
			return fmt.Errorf("failed to sweep thresholds: %w", err)
		}
		res.Sweep = rows
	}

	if !(out.Preview || out.NPY || out.Labels || out.Chart || out.Sweep || len(out.Slices) > 0) {
		return nil
	}

	dir := out.Dir
	if dir == "" {
		dir = p.cfg.Output.Dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		if err := fn(path); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		p.log.Info().Str("path", path).Msg("output written")
		res.Files = append(res.Files, path)
		return nil
	}

	tf := res.Model.Transfer()
	rng := res.Model.Range()

	if out.Preview {
		err := write("preview.png", func(path string) error {
			return viewer.PreviewMontage(path, visualization.MontageOptions{
				Slices:   p.cfg.Output.PreviewSlices,
				TileSize: p.cfg.Output.PreviewSize,
				Transfer: &tf,
			})
		})
		if err != nil {
			return err
		}
	}

	if out.Chart {
		err := write("transfer.png", func(path string) error {
			return visualization.SaveTransferPlot(path, tf, rng)
		})
		if err != nil {
			return err
		}
		if preset.ColorPreset != "" {
			static, err := p.colorPreset(preset, rng)
			if err != nil {
				return err
			}
			err = write("preset.png", func(path string) error {
				return visualization.SaveTransferPlot(path, static, rng)
			})
			if err != nil {
				return err
			}
		}
	}

	if out.NPY {
		err := write("volume.npy", func(path string) error {
			return export.WriteVolumeNPY(path, res.Volume)
		})
		if err != nil {
			return err
		}
	}

	if out.Labels {
		if res.Clustering == nil {
			p.log.Warn().Msg("no clustering available, labels.npy skipped")
		} else {
			err := write("labels.npy", func(path string) error {
				return export.WriteLabelsNPY(path, res.Clustering.Labels, res.Volume.Dimensions())
			})
			if err != nil {
				return err
			}
		}
	}

	if out.Sweep {
		err := write("sweep.csv", func(path string) error {
			return export.WriteSweepCSV(path, res.Sweep)
		})
		if err != nil {
			return err
		}
	}

	if len(out.Slices) > 0 {
		slicesDir := out.SlicesDir
		if slicesDir == "" {
			slicesDir = filepath.Join(dir, "slices")
		}
		for _, axis := range out.Slices {
			axisDir := filepath.Join(slicesDir, string(axis))
			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				return fmt.Errorf("failed to save %s slices: %w", axis, err)
			}
			p.log.Info().Str("axis", string(axis)).Str("path", axisDir).Msg("slices written")
			res.Files = append(res.Files, axisDir)
		}
	}

	return nil
}

// colorPreset builds the preset's static transfer function. The windowed
// preset follows the preset's display window unless the volume was already
// windowed to 0..255.
func (p *Pipeline) colorPreset(preset config.Preset, rng transfer.Range) (transfer.Function, error) {
	if preset.ColorPreset == "windowed" && !preset.ApplyWindow {
		return transfer.Windowed(preset.WindowCenter, preset.WindowWidth, rng)
	}
	return transfer.Preset(preset.ColorPreset, rng)
}

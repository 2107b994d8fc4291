package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dicomseg/internal/models"
	"dicomseg/pkg/config"
	"dicomseg/pkg/transfer"
	"dicomseg/pkg/volume"
)

// createTestSlices builds depth slices of size n x n with three intensity
// regions: air (-900), soft tissue (40) and bone (700)
func createTestSlices(n, depth int) []models.Slice {
	slices := make([]models.Slice, depth)
	for z := range slices {
		pixels := make([]float64, n*n)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				switch {
				case x < n*3/8:
					pixels[y*n+x] = -900
				case x < n*6/8:
					pixels[y*n+x] = 40
				default:
					pixels[y*n+x] = 700
				}
			}
		}
		slices[z] = models.NewSlice(pixels, n, n)
		slices[z].Index = z
	}
	return slices
}

// testConfig returns the default configuration with one extra preset
func testConfig(name string, p config.Preset) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Presets[name] = p
	return cfg
}

func TestProcessSlicesBinary(t *testing.T) {
	cfg := testConfig("test", config.Preset{Scheme: "binary"})
	p := New(&Params{Config: cfg, PresetName: "test"})

	res, err := p.ProcessSlices(context.Background(), createTestSlices(8, 2))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}

	if res.Model.Scheme().Kind != transfer.BinaryBand {
		t.Errorf("Expected binary scheme, got %v", res.Model.Scheme().Kind)
	}
	if res.Model.Lower() > res.Model.Upper() {
		t.Errorf("Thresholds inverted: %v > %v", res.Model.Lower(), res.Model.Upper())
	}
	if s := res.Model.Stats(); s.Below+s.Between+s.Above != s.Total || s.Total != 128 {
		t.Errorf("Unexpected stats %+v", s)
	}
	if res.Summary.Min != -900 || res.Summary.Max != 700 {
		t.Errorf("Expected range [-900, 700], got [%v, %v]", res.Summary.Min, res.Summary.Max)
	}
	if res.Otsu <= -900 || res.Otsu > 700 {
		t.Errorf("Otsu threshold %v outside the data range", res.Otsu)
	}
	if res.Clustering != nil {
		t.Error("Expected no clustering for binary scheme")
	}
	if len(res.Files) != 0 {
		t.Errorf("Expected no output files, got %v", res.Files)
	}
}

func TestSchemeOverrideAndWindow(t *testing.T) {
	cfg := testConfig("test", config.Preset{
		Scheme:       "binary",
		ApplyWindow:  true,
		WindowCenter: -600,
		WindowWidth:  1500,
	})
	p := New(&Params{Config: cfg, PresetName: "test", Scheme: "tri-band"})

	res, err := p.ProcessSlices(context.Background(), createTestSlices(8, 2))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}
	if res.Model.Scheme().Kind != transfer.TriBand {
		t.Errorf("Expected scheme override to tri-band, got %v", res.Model.Scheme().Kind)
	}
	if min, max := res.Volume.ValueRange(); min < 0 || max > 255 {
		t.Errorf("Expected windowed range within 0..255, got [%v, %v]", min, max)
	}
}

func TestDownsample(t *testing.T) {
	cfg := testConfig("test", config.Preset{Scheme: "binary"})
	cfg.Loading.DownsampleAbove = 4
	p := New(&Params{Config: cfg, PresetName: "test"})

	res, err := p.ProcessSlices(context.Background(), createTestSlices(8, 2))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}
	if d := res.Volume.Dimensions(); d.NX != 4 || d.NY != 4 || d.NZ != 2 {
		t.Errorf("Expected 4x4x2 volume, got %+v", d)
	}
}

func TestResampleAndFilters(t *testing.T) {
	cfg := testConfig("test", config.Preset{Scheme: "binary", Smooth: 0.5, MedianRadius: 1})
	cfg.Loading.ResampleZ = 2
	p := New(&Params{Config: cfg, PresetName: "test"})

	res, err := p.ProcessSlices(context.Background(), createTestSlices(8, 3))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}
	if d := res.Volume.Dimensions(); d.NZ != 5 {
		t.Errorf("Expected 5 planes after resampling, got %d", d.NZ)
	}
	if min, max := res.Volume.ValueRange(); min < -900 || max > 700 {
		t.Errorf("Filtering left the input range: [%v, %v]", min, max)
	}
}

func TestClusters(t *testing.T) {
	cfg := testConfig("test", config.Preset{Scheme: "clusters", Clusters: 3})
	p := New(&Params{Config: cfg, PresetName: "test"})

	res, err := p.ProcessSlices(context.Background(), createTestSlices(8, 2))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}
	if res.Clustering == nil {
		t.Fatal("Expected a clustering result")
	}
	if got := res.Model.Scheme(); got.Kind != transfer.ClusterBased || len(got.Centers) != 3 {
		t.Errorf("Expected cluster scheme with 3 centers, got %+v", got)
	}
	if len(res.Clustering.Labels) != res.Volume.Len() {
		t.Errorf("Expected %d labels, got %d", res.Volume.Len(), len(res.Clustering.Labels))
	}
}

func TestClustersFallback(t *testing.T) {
	cfg := testConfig("test", config.Preset{Scheme: "clusters", Clusters: 64})
	p := New(&Params{Config: cfg, PresetName: "test"})

	res, err := p.ProcessSlices(context.Background(), createTestSlices(8, 2))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}
	if res.Clustering != nil {
		t.Error("Expected clustering to be skipped")
	}
	if res.Model.Scheme().Kind != transfer.TriBand {
		t.Errorf("Expected tri-band fallback, got %v", res.Model.Scheme().Kind)
	}
}

func TestUnknownPreset(t *testing.T) {
	p := New(&Params{PresetName: "does-not-exist"})
	if _, err := p.ProcessSlices(context.Background(), createTestSlices(4, 1)); err == nil {
		t.Error("Expected error for unknown preset, got nil")
	}
}

func TestEmptyDirectory(t *testing.T) {
	p := New(&Params{Input: t.TempDir()})
	_, err := p.Process(context.Background())
	if !errors.Is(err, volume.ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}

// TestOutputs runs every optional output and checks the files exist
func TestOutputs(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	cfg := testConfig("test", config.Preset{Scheme: "clusters", Clusters: 3, ColorPreset: "hot"})
	cfg.Output.PreviewSlices = 2
	cfg.Output.PreviewSize = 32

	var hist bytes.Buffer
	dir := filepath.Join(t.TempDir(), "out")
	p := New(&Params{
		Config:     cfg,
		PresetName: "test",
		Outputs: Outputs{
			Dir:          dir,
			Preview:      true,
			Histogram:    true,
			HistogramOut: &hist,
			NPY:          true,
			Labels:       true,
			Chart:        true,
			Sweep:        true,
		},
	})

	res, err := p.ProcessSlices(context.Background(), createTestSlices(8, 3))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}

	for _, name := range []string{"preview.png", "transfer.png", "preset.png", "volume.npy", "labels.npy", "sweep.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected output %s: %v", name, err)
		}
	}
	if len(res.Files) != 6 {
		t.Errorf("Expected 6 files reported, got %v", res.Files)
	}
	if len(res.Sweep) != len(cfg.Segmentation.SweepPercentiles) {
		t.Errorf("Expected %d sweep rows, got %d", len(cfg.Segmentation.SweepPercentiles), len(res.Sweep))
	}
	if hist.Len() == 0 {
		t.Error("Expected histogram output")
	}
}

func TestSpacingOverride(t *testing.T) {
	cfg := testConfig("test", config.Preset{Scheme: "binary"})
	cfg.Loading.Spacing = models.Spacing{X: 0.8, Y: 0.8, Z: 3}

	res, err := New(&Params{Config: cfg, PresetName: "test"}).ProcessSlices(context.Background(), createTestSlices(8, 2))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}
	if got := res.Volume.Spacing(); got != cfg.Loading.Spacing {
		t.Errorf("Expected configured spacing %+v, got %+v", cfg.Loading.Spacing, got)
	}

	params := &Params{Config: cfg, PresetName: "test", Spacing: models.Spacing{X: 0.5, Y: 0.5, Z: 1}}
	res, err = New(params).ProcessSlices(context.Background(), createTestSlices(8, 2))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}
	if got := res.Volume.Spacing(); got != params.Spacing {
		t.Errorf("Expected parameter spacing %+v, got %+v", params.Spacing, got)
	}
}

func TestSliceSequences(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	cfg := testConfig("test", config.Preset{Scheme: "binary"})
	dir := filepath.Join(t.TempDir(), "out")
	p := New(&Params{
		Config:     cfg,
		PresetName: "test",
		Outputs: Outputs{
			Dir:    dir,
			Slices: []models.Axis{models.AxisZ, models.AxisX},
		},
	})

	res, err := p.ProcessSlices(context.Background(), createTestSlices(8, 3))
	if err != nil {
		t.Fatalf("ProcessSlices failed: %v", err)
	}

	for _, name := range []string{"z/slice_z_000.jpg", "z/slice_z_002.jpg", "x/slice_x_007.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, "slices", name)); err != nil {
			t.Errorf("Expected slice %s: %v", name, err)
		}
	}
	if len(res.Files) != 2 {
		t.Errorf("Expected 2 slice directories reported, got %v", res.Files)
	}
}

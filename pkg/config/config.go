// Package config provides configuration loading and management for dicomseg.
// It handles loading configuration from YAML files, provides default values and
// holds the named presets that parameterize the segmentation pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"dicomseg/internal/models"
)

// Preset bundles the display window, coloring scheme and threshold defaults of
// one kind of study
type Preset struct {
	// WindowCenter and WindowWidth define the display window in modality units
	WindowCenter float64 `yaml:"windowCenter"`
	WindowWidth  float64 `yaml:"windowWidth"`

	// ApplyWindow clips and rescales the volume to 0..255 before segmentation
	ApplyWindow bool `yaml:"applyWindow"`

	// Scheme is the transfer function coloring scheme: binary, tri-band or clusters
	Scheme string `yaml:"scheme"`

	// LowerPercentile and UpperPercentile override the scheme's default
	// thresholds. Both must be set, or neither.
	LowerPercentile float64 `yaml:"lowerPercentile,omitempty"`
	UpperPercentile float64 `yaml:"upperPercentile,omitempty"`

	// Clusters is the k used by the clusters scheme
	Clusters int `yaml:"clusters,omitempty"`

	// ThoraxSpacing forces a 2.5 mm slice spacing when the header reports less than 2 mm
	ThoraxSpacing bool `yaml:"thoraxSpacing"`

	// ColorPreset names a static transfer function used for the overview chart
	ColorPreset string `yaml:"colorPreset,omitempty"`

	// Smooth is the standard deviation in voxels of a Gaussian filter applied
	// before segmentation; 0 disables it
	Smooth float64 `yaml:"smooth,omitempty"`

	// MedianRadius removes speckle with an in-plane median filter; 0 disables it
	MedianRadius int `yaml:"medianRadius,omitempty"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Loading parameters
	Loading struct {
		// MaxSlices subsamples the series evenly; 0 loads every slice
		MaxSlices int `yaml:"maxSlices"`

		// SkipFirst drops the first file of the series (study information image)
		SkipFirst bool `yaml:"skipFirst"`

		// DownsampleAbove halves the in-plane resolution of slices with more rows
		// than this; 0 disables downsampling
		DownsampleAbove int `yaml:"downsampleAbove"`

		// ResampleZ inserts interpolated planes so that each slice gap holds
		// this many steps; 0 or 1 keeps the acquired slices only
		ResampleZ int `yaml:"resampleZ,omitempty"`

		// Spacing replaces the voxel spacing read from the files when set.
		// Axes left at zero fall back to the default spacing.
		Spacing models.Spacing `yaml:"spacing,omitempty"`
	} `yaml:"loading"`

	// DefaultPreset is used when no preset is selected on the command line
	DefaultPreset string `yaml:"defaultPreset"`

	// Presets maps preset names to their parameters
	Presets map[string]Preset `yaml:"presets"`

	// Segmentation parameters
	Segmentation struct {
		// KMeansIterations caps the k-means refinement rounds
		KMeansIterations int `yaml:"kmeansIterations"`

		// KMeansSample is the number of voxels used to fit cluster centres
		KMeansSample int `yaml:"kmeansSample"`

		// HistogramBins is the bin count of the Otsu and console histograms
		HistogramBins int `yaml:"histogramBins"`

		// SweepPercentiles are the candidate levels of the threshold sweep
		SweepPercentiles []float64 `yaml:"sweepPercentiles"`
	} `yaml:"segmentation"`

	// Output parameters
	Output struct {
		// Dir is where preview images, charts and exports are written
		Dir string `yaml:"dir"`

		// PreviewSlices is the number of axial slices in the preview montage
		PreviewSlices int `yaml:"previewSlices"`

		// PreviewSize is the edge length in pixels of each montage tile
		PreviewSize int `yaml:"previewSize"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// JSON switches from console to JSON log lines
		JSON bool `yaml:"json"`
	} `yaml:"logging"`
}

// DefaultPresets returns the built-in presets
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		"lung": {
			WindowCenter:  -600,
			WindowWidth:   1500,
			ApplyWindow:   true,
			Scheme:        "binary",
			ThoraxSpacing: true,
			ColorPreset:   "windowed",
			Smooth:        1.0,
		},
		"soft-tissue": {
			WindowCenter: 50,
			WindowWidth:  400,
			Scheme:       "tri-band",
			ColorPreset:  "medical",
		},
		"covid-segmentation": {
			WindowCenter:  -600,
			WindowWidth:   1500,
			Scheme:        "binary",
			ThoraxSpacing: true,
			ColorPreset:   "lung",
		},
		"multi-region": {
			WindowCenter: -600,
			WindowWidth:  1500,
			Scheme:       "tri-band",
			ColorPreset:  "medical",
		},
		"clusters": {
			WindowCenter: -600,
			WindowWidth:  1500,
			Scheme:       "clusters",
			Clusters:     3,
			ColorPreset:  "hot",
		},
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default loading parameters
	cfg.Loading.MaxSlices = 0
	cfg.Loading.SkipFirst = false
	cfg.Loading.DownsampleAbove = 256

	// Set default presets
	cfg.DefaultPreset = "covid-segmentation"
	cfg.Presets = DefaultPresets()

	// Set default segmentation parameters
	cfg.Segmentation.KMeansIterations = 50
	cfg.Segmentation.KMeansSample = 200000
	cfg.Segmentation.HistogramBins = 256
	cfg.Segmentation.SweepPercentiles = []float64{50, 60, 70, 80, 90}

	// Set default output parameters
	cfg.Output.Dir = "output"
	cfg.Output.PreviewSlices = 5
	cfg.Output.PreviewSize = 256

	// Set default logging parameters
	cfg.Logging.Level = "info"
	cfg.Logging.JSON = false

	return cfg
}

// Preset returns the named preset, or the default preset when name is empty
func (c *Config) Preset(name string) (Preset, error) {
	if name == "" {
		name = c.DefaultPreset
	}
	p, ok := c.Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (available: %v)", name, c.PresetNames())
	}
	return p, nil
}

// PresetNames lists the configured presets in alphabetical order
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for n := range c.Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the values that would otherwise fail deep inside the pipeline
func (c *Config) Validate() error {
	if c.Loading.MaxSlices < 0 {
		return fmt.Errorf("loading.maxSlices must not be negative, got %d", c.Loading.MaxSlices)
	}
	if c.Loading.ResampleZ < 0 {
		return fmt.Errorf("loading.resampleZ must not be negative, got %d", c.Loading.ResampleZ)
	}
	if sp := c.Loading.Spacing; sp.X < 0 || sp.Y < 0 || sp.Z < 0 {
		return fmt.Errorf("loading.spacing must not be negative, got %+v", sp)
	}
	if c.Segmentation.HistogramBins < 2 {
		return fmt.Errorf("segmentation.histogramBins must be at least 2, got %d", c.Segmentation.HistogramBins)
	}
	for name, p := range c.Presets {
		if p.ApplyWindow && p.WindowWidth <= 0 {
			return fmt.Errorf("preset %s: windowWidth must be positive when applyWindow is set", name)
		}
		if p.Smooth < 0 || p.MedianRadius < 0 {
			return fmt.Errorf("preset %s: smoothing parameters must not be negative", name)
		}
		if (p.LowerPercentile != 0) != (p.UpperPercentile != 0) {
			return fmt.Errorf("preset %s: lowerPercentile and upperPercentile must be set together", name)
		}
		if p.LowerPercentile < 0 || p.UpperPercentile > 100 || p.LowerPercentile > p.UpperPercentile {
			return fmt.Errorf("preset %s: invalid percentiles %v/%v", name, p.LowerPercentile, p.UpperPercentile)
		}
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML; presets from the file are merged over the built-in ones
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

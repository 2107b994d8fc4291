package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DefaultPreset != "covid-segmentation" {
		t.Errorf("Expected default preset, got %q", cfg.DefaultPreset)
	}
	p, err := cfg.Preset("")
	if err != nil {
		t.Fatalf("Preset failed: %v", err)
	}
	if p.Scheme != "binary" || p.WindowCenter != -600 || p.WindowWidth != 1500 {
		t.Errorf("Unexpected default preset %+v", p)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dicomseg.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Presets) != len(DefaultPresets()) {
		t.Errorf("Expected %d presets, got %d", len(DefaultPresets()), len(cfg.Presets))
	}
	if cfg.Presets["clusters"].Clusters != 3 {
		t.Errorf("Expected clusters preset with k=3, got %+v", cfg.Presets["clusters"])
	}
	if cfg.Presets["lung"].Smooth != 1 {
		t.Errorf("Expected lung preset smoothing 1, got %v", cfg.Presets["lung"].Smooth)
	}
}

func TestLoadMergesPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicomseg.yaml")
	data := []byte(`
defaultPreset: bone
loading:
  maxSlices: 80
  spacing: {x: 0.8, y: 0.8, z: 2}
presets:
  bone:
    windowCenter: 400
    windowWidth: 1800
    scheme: tri-band
    lowerPercentile: 60
    upperPercentile: 95
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Loading.MaxSlices != 80 {
		t.Errorf("Expected maxSlices 80, got %d", cfg.Loading.MaxSlices)
	}
	if sp := cfg.Loading.Spacing; sp.X != 0.8 || sp.Y != 0.8 || sp.Z != 2 {
		t.Errorf("Expected spacing 0.8/0.8/2, got %+v", sp)
	}
	if cfg.Loading.DownsampleAbove != 256 {
		t.Errorf("Expected untouched default downsampleAbove, got %d", cfg.Loading.DownsampleAbove)
	}
	p, err := cfg.Preset("")
	if err != nil {
		t.Fatalf("Preset failed: %v", err)
	}
	if p.WindowCenter != 400 || p.UpperPercentile != 95 {
		t.Errorf("Unexpected bone preset %+v", p)
	}
	if _, err := cfg.Preset("lung"); err != nil {
		t.Errorf("Built-in presets should survive a partial file: %v", err)
	}
	if _, err := cfg.Preset("nope"); err == nil {
		t.Error("Expected error for unknown preset, got nil")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicomseg.yaml")
	data := []byte(`
presets:
  broken:
    applyWindow: true
    windowWidth: 0
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected validation error, got nil")
	}

	if err := os.WriteFile(path, []byte("loading:\n  resampleZ: -2\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for negative resampleZ, got nil")
	}

	if err := os.WriteFile(path, []byte("loading:\n  spacing: {x: 1, y: 1, z: -1}\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for negative spacing, got nil")
	}

	if err := os.WriteFile(path, []byte("presets:\n  lung:\n    lowerPercentile: 40\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for a lone lowerPercentile, got nil")
	}

	cfg := DefaultConfig()
	lung := cfg.Presets["lung"]
	lung.UpperPercentile = 90
	cfg.Presets["lung"] = lung
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for a lone upperPercentile, got nil")
	}
	lung.LowerPercentile = 20
	cfg.Presets["lung"] = lung
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected paired percentiles to validate, got %v", err)
	}

	if err := os.WriteFile(path, []byte("presets: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error, got nil")
	}
}

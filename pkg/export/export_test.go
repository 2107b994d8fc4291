package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dicomseg/internal/models"
	"dicomseg/pkg/segmentation"
	"dicomseg/pkg/volume"
)

func TestVolumeNPYRoundTrip(t *testing.T) {
	dims := volume.Dims{NX: 4, NY: 3, NZ: 2}
	data := make([]float64, dims.Len())
	for i := range data {
		data[i] = float64(i)*1.5 - 7
	}
	vol, err := volume.New(data, dims, models.Spacing{X: 0.5, Y: 0.5, Z: 2})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}

	path := filepath.Join(t.TempDir(), "volume.npy")
	if err := WriteVolumeNPY(path, vol); err != nil {
		t.Fatalf("WriteVolumeNPY failed: %v", err)
	}

	back, err := ReadVolumeNPY(path, vol.Spacing())
	if err != nil {
		t.Fatalf("ReadVolumeNPY failed: %v", err)
	}
	if back.Dimensions() != dims {
		t.Fatalf("Expected dims %+v, got %+v", dims, back.Dimensions())
	}
	for z := 0; z < dims.NZ; z++ {
		for y := 0; y < dims.NY; y++ {
			for x := 0; x < dims.NX; x++ {
				want, _ := vol.Sample(x, y, z)
				got, _ := back.Sample(x, y, z)
				if got != want {
					t.Errorf("Voxel (%d,%d,%d): expected %v, got %v", x, y, z, want, got)
				}
			}
		}
	}
}

func TestWriteLabelsNPY(t *testing.T) {
	dims := volume.Dims{NX: 2, NY: 2, NZ: 2}
	path := filepath.Join(t.TempDir(), "labels.npy")

	if err := WriteLabelsNPY(path, []uint8{0, 1, 2, 0, 1, 2, 0, 1}, dims); err != nil {
		t.Fatalf("WriteLabelsNPY failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Labels file missing: %v", err)
	}
	if info.Size() <= 8 {
		t.Errorf("Labels file too small: %d bytes", info.Size())
	}

	if err := WriteLabelsNPY(path, []uint8{0, 1}, dims); err == nil {
		t.Error("Expected error for mismatched label count, got nil")
	}
}

func TestWriteSweepCSV(t *testing.T) {
	rows := []segmentation.SweepRow{
		{Threshold: -500, Selected: 60, SelectedPct: 60, Below: 40, BelowPct: 40},
		{Threshold: -200, Selected: 30, SelectedPct: 30, Below: 70, BelowPct: 70},
	}
	path := filepath.Join(t.TempDir(), "sweep.csv")
	if err := WriteSweepCSV(path, rows); err != nil {
		t.Fatalf("WriteSweepCSV failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "threshold,selected_voxels,selected_pct,below_voxels,below_pct" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "-500,60,") {
		t.Errorf("Unexpected first row %q", lines[1])
	}
}

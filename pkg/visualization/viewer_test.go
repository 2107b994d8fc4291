package visualization

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dicomseg/internal/models"
	"dicomseg/pkg/transfer"
	"dicomseg/pkg/volume"
)

// createTestVolume builds a volume where each Z slice has a unique value z
func createTestVolume(t *testing.T, width, height, depth int) *volume.Buffer {
	t.Helper()
	volumeData := make([]float64, width*height*depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				idx := z*width*height + y*width + x
				volumeData[idx] = float64(z)
			}
		}
	}
	vol, err := volume.New(volumeData, volume.Dims{NX: width, NY: height, NZ: depth}, models.Spacing{})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer := NewViewer(createTestVolume(t, width, height, depth))

	// Test extracting Z slices
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice(models.AxisZ, z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		// Verify dimensions
		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		// Values are scaled to the volume range [0, depth-1]
		expectedValue := uint16(float64(z) / float64(depth-1) * 65535)
		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}

		centerValue := gray16Img.Gray16At(width/2, height/2).Y
		if math.Abs(float64(centerValue)-float64(expectedValue)) > 1.0 {
			t.Errorf("Expected Z slice value ~%d at center, got %d",
				expectedValue, centerValue)
		}
	}

	// Test extracting X slice
	imgX, err := viewer.ExtractSlice(models.AxisX, width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	// Test extracting Y slice
	imgY, err := viewer.ExtractSlice(models.AxisY, height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	// Test invalid axis
	if _, err = viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}

	// Test out of bounds position
	if _, err = viewer.ExtractSlice(models.AxisZ, depth+1); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
}

// TestRenderSlice verifies the transfer function is applied per voxel
func TestRenderSlice(t *testing.T) {
	viewer := NewViewer(createTestVolume(t, 4, 4, 3))
	tf := transfer.Function{
		Opacity: []transfer.OpacityPoint{{X: 0, Opacity: 0}, {X: 2, Opacity: 1}},
		Color:   []transfer.ColorPoint{{X: 0, RGB: transfer.RGB{R: 1, G: 0, B: 0}}},
	}

	img, err := viewer.RenderSlice(models.AxisZ, 0, tf)
	if err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}
	if c := img.NRGBAAt(1, 1); c.R != 0 || c.A != 255 {
		t.Errorf("Expected transparent voxel rendered black, got %+v", c)
	}

	img, err = viewer.RenderSlice(models.AxisZ, 2, tf)
	if err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}
	if c := img.NRGBAAt(1, 1); c.R != 255 || c.G != 0 {
		t.Errorf("Expected opaque red voxel, got %+v", c)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	// Skip this test in short mode
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	depth := 3
	viewer := NewViewer(createTestVolume(t, 5, 5, depth))

	outputDir := filepath.Join(tempDir, "slices")
	if err := viewer.SaveSliceSequence(models.AxisZ, outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	// Verify files exist
	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.jpg", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	// Test invalid axis
	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestPreviewMontage verifies the montage layout and file output
func TestPreviewMontage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	viewer := NewViewer(createTestVolume(t, 16, 16, 9))

	img, err := viewer.Montage(MontageOptions{Slices: 3, TileSize: 32})
	if err != nil {
		t.Fatalf("Montage failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 96 || b.Dy() != 32 {
		t.Errorf("Expected 96x32 montage, got %dx%d", b.Dx(), b.Dy())
	}

	if got := evenPositions(9, 3); got[0] != 0 || got[1] != 4 || got[2] != 8 {
		t.Errorf("Unexpected slice positions %v", got)
	}

	path := filepath.Join(t.TempDir(), "preview.png")
	tf, err := transfer.Regenerate(transfer.Scheme{Kind: transfer.BinaryBand},
		transfer.Thresholds{Lower: 2, Upper: 6}, transfer.Range{Min: 0, Max: 8})
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if err := viewer.PreviewMontage(path, MontageOptions{Slices: 5, TileSize: 32, Transfer: &tf}); err != nil {
		t.Fatalf("PreviewMontage failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Preview not written: %v", err)
	}
}

// TestFprintHistogram verifies the console histogram is written
func TestFprintHistogram(t *testing.T) {
	viewer := NewViewer(createTestVolume(t, 4, 4, 4))

	var buf bytes.Buffer
	if err := viewer.FprintHistogram(&buf, 4, 20); err != nil {
		t.Fatalf("FprintHistogram failed: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines < 4 {
		t.Errorf("Expected at least 4 histogram lines, got %d:\n%s", lines, buf.String())
	}
}

// TestPlotTransfer verifies a PNG chart is produced
func TestPlotTransfer(t *testing.T) {
	r := transfer.Range{Min: -1000, Max: 1000}
	tf, err := transfer.Regenerate(transfer.Scheme{Kind: transfer.TriBand},
		transfer.Thresholds{Lower: -600, Upper: -100}, r)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	var buf bytes.Buffer
	if err := PlotTransfer(&buf, tf, r); err != nil {
		t.Fatalf("PlotTransfer failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Chart is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 768 || b.Dy() != 320 {
		t.Errorf("Unexpected chart size %dx%d", b.Dx(), b.Dy())
	}

	if err := PlotTransfer(&buf, tf, transfer.Range{Min: 1, Max: 1}); err == nil {
		t.Error("Expected error for empty range, got nil")
	}
}

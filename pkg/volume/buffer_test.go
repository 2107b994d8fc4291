package volume

import (
	"errors"
	"math"
	"strings"
	"testing"

	"dicomseg/internal/models"
)

// createTestSlices builds n slices of rows x cols where each voxel encodes its
// own coordinates: value = z*10000 + y*100 + x
func createTestSlices(n, rows, cols int) []models.Slice {
	slices := make([]models.Slice, n)
	for z := 0; z < n; z++ {
		pixels := make([]float64, rows*cols)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				pixels[y*cols+x] = float64(z*10000 + y*100 + x)
			}
		}
		slices[z] = models.NewSlice(pixels, rows, cols)
		slices[z].Index = z
	}
	return slices
}

// TestLoadRoundTrip verifies that every input intensity can be read back at
// its coordinates
func TestLoadRoundTrip(t *testing.T) {
	n, rows, cols := 4, 6, 5
	vol, err := Load(createTestSlices(n, rows, cols))
	if err != nil {
		t.Fatalf("Failed to load volume: %v", err)
	}

	dims := vol.Dimensions()
	if dims.NX != cols || dims.NY != rows || dims.NZ != n {
		t.Fatalf("Expected dimensions %dx%dx%d, got %dx%dx%d", cols, rows, n, dims.NX, dims.NY, dims.NZ)
	}

	for z := 0; z < n; z++ {
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				v, err := vol.Sample(x, y, z)
				if err != nil {
					t.Fatalf("Sample(%d,%d,%d) failed: %v", x, y, z, err)
				}
				want := float64(z*10000 + y*100 + x)
				if v != want {
					t.Errorf("Sample(%d,%d,%d) = %v, expected %v", x, y, z, v, want)
				}
			}
		}
	}

	min, max := vol.ValueRange()
	if min != 0 {
		t.Errorf("Expected min 0, got %v", min)
	}
	if want := float64((n-1)*10000 + (rows-1)*100 + cols - 1); max != want {
		t.Errorf("Expected max %v, got %v", want, max)
	}
}

// TestLoadErrors verifies the empty input and shape mismatch failures
func TestLoadErrors(t *testing.T) {
	if _, err := Load(nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}

	slices := createTestSlices(3, 4, 4)
	slices[2] = models.NewSlice(make([]float64, 12), 3, 4)

	_, err := Load(slices)
	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("Expected *ShapeMismatchError, got %v", err)
	}
	if shapeErr.Index != 2 || shapeErr.GotRows != 3 || shapeErr.WantRows != 4 {
		t.Errorf("Unexpected mismatch details: %+v", shapeErr)
	}

	// The first slice's pixels disagree with its own shape
	slices = createTestSlices(2, 4, 4)
	slices[0].Pixels = slices[0].Pixels[:10]
	_, err = Load(slices)
	if !errors.As(err, &shapeErr) {
		t.Fatalf("Expected *ShapeMismatchError, got %v", err)
	}
	if shapeErr.Index != 0 || shapeErr.GotPixels != 10 {
		t.Errorf("Unexpected mismatch details: %+v", shapeErr)
	}
	if msg := err.Error(); !strings.Contains(msg, "10 pixels") || !strings.Contains(msg, "expected 16") {
		t.Errorf("Expected pixel counts in error message, got %q", msg)
	}
}

// TestSampleOutOfRange verifies bounds checking never wraps or clamps
func TestSampleOutOfRange(t *testing.T) {
	vol, err := Load(createTestSlices(2, 3, 3))
	if err != nil {
		t.Fatalf("Failed to load volume: %v", err)
	}

	for _, c := range [][3]int{{-1, 0, 0}, {3, 0, 0}, {0, 3, 0}, {0, 0, 2}, {0, 0, -1}} {
		_, err := vol.Sample(c[0], c[1], c[2])
		var idxErr *IndexOutOfRangeError
		if !errors.As(err, &idxErr) {
			t.Errorf("Sample(%v) expected *IndexOutOfRangeError, got %v", c, err)
		}
	}
}

// TestSpacing verifies metadata spacing, defaults and the thorax correction
func TestSpacing(t *testing.T) {
	slices := createTestSlices(2, 2, 2)
	vol, err := Load(slices)
	if err != nil {
		t.Fatalf("Failed to load volume: %v", err)
	}
	if vol.Spacing() != models.DefaultSpacing {
		t.Errorf("Expected default spacing %+v, got %+v", models.DefaultSpacing, vol.Spacing())
	}

	slices[1].Spacing = models.Spacing{X: 0.5, Y: 0.6, Z: 1.0}
	vol, err = Load(slices)
	if err != nil {
		t.Fatalf("Failed to load volume: %v", err)
	}
	if got := vol.Spacing(); got.X != 0.5 || got.Y != 0.6 || got.Z != 1.0 {
		t.Errorf("Expected metadata spacing, got %+v", got)
	}

	vol, err = Load(slices, WithSpacing(models.Spacing{X: 0.8, Y: 0.9}))
	if err != nil {
		t.Fatalf("Failed to load volume: %v", err)
	}
	if got := vol.Spacing(); got.X != 0.8 || got.Y != 0.9 || got.Z != models.DefaultSpacing.Z {
		t.Errorf("Expected override spacing with default z, got %+v", got)
	}

	vol, err = Load(slices, WithThoraxSpacing())
	if err != nil {
		t.Fatalf("Failed to load volume: %v", err)
	}
	if got := vol.Spacing().Z; got != 2.5 {
		t.Errorf("Expected thorax z spacing 2.5, got %v", got)
	}
}

// TestPercentile checks percentiles against a known ramp
func TestPercentile(t *testing.T) {
	data := make([]float64, 101)
	for i := range data {
		data[i] = float64(100 - i)
	}
	vol, err := New(data, Dims{NX: 101, NY: 1, NZ: 1}, models.Spacing{})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}

	if got := vol.Percentile(0); got != 0 {
		t.Errorf("Expected p0 = 0, got %v", got)
	}
	if got := vol.Percentile(100); got != 100 {
		t.Errorf("Expected p100 = 100, got %v", got)
	}
	if got := vol.Percentile(50); math.Abs(got-50) > 1 {
		t.Errorf("Expected p50 ~ 50, got %v", got)
	}

	// The source array must be untouched by sorting.
	if v, _ := vol.Sample(0, 0, 0); v != 100 {
		t.Errorf("Expected first voxel 100 after sorting, got %v", v)
	}
}

// TestVoxelsIsCopy verifies the buffer stays immutable
func TestVoxelsIsCopy(t *testing.T) {
	vol, err := Load(createTestSlices(1, 2, 2))
	if err != nil {
		t.Fatalf("Failed to load volume: %v", err)
	}
	v := vol.Voxels()
	v[0] = -1
	if got, _ := vol.Sample(0, 0, 0); got != 0 {
		t.Errorf("Voxels() leaked internal storage, got %v", got)
	}
}

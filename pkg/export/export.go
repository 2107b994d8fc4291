// Package export writes volumes, label maps and sweep tables in formats other
// tools read directly: NumPy .npy arrays and CSV.
package export

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/kshedden/gonpy"

	"dicomseg/internal/models"
	"dicomseg/pkg/segmentation"
	"dicomseg/pkg/volume"
)

// WriteVolumeNPY writes the intensities as a float64 array of shape
// (nz, ny, nx), matching the row-major storage order
func WriteVolumeNPY(path string, vol *volume.Buffer) error {
	d := vol.Dimensions()

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("export: failed to open %s: %w", path, err)
	}
	w.Shape = []int{d.NZ, d.NY, d.NX}
	w.Version = 2
	if err := w.WriteFloat64(vol.Voxels()); err != nil {
		return fmt.Errorf("export: failed to write %s: %w", path, err)
	}
	return nil
}

// WriteLabelsNPY writes a per-voxel label map (for example k-means cluster
// indices) as a uint8 array of shape (nz, ny, nx)
func WriteLabelsNPY(path string, labels []uint8, d volume.Dims) error {
	if len(labels) != d.Len() {
		return fmt.Errorf("export: %d labels for a %dx%dx%d volume", len(labels), d.NX, d.NY, d.NZ)
	}

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("export: failed to open %s: %w", path, err)
	}
	w.Shape = []int{d.NZ, d.NY, d.NX}
	w.Version = 2
	if err := w.WriteUint8(labels); err != nil {
		return fmt.Errorf("export: failed to write %s: %w", path, err)
	}
	return nil
}

// ReadVolumeNPY reads a float64 array of shape (nz, ny, nx) back into a volume
// with the given spacing
func ReadVolumeNPY(path string, spacing models.Spacing) (*volume.Buffer, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("export: failed to open %s: %w", path, err)
	}
	if len(r.Shape) != 3 {
		return nil, fmt.Errorf("export: %s has shape %v, expected 3 dimensions", path, r.Shape)
	}
	if r.ColumnMajor {
		return nil, fmt.Errorf("export: %s is stored in column-major order", path)
	}

	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("export: failed to read %s: %w", path, err)
	}

	return volume.New(data, volume.Dims{NX: r.Shape[2], NY: r.Shape[1], NZ: r.Shape[0]}, spacing)
}

// WriteSweepCSV writes one row per threshold candidate
func WriteSweepCSV(path string, rows []segmentation.SweepRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: failed to create %s: %w", path, err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("export: failed to write %s: %w", path, err)
	}
	return f.Close()
}

package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"dicomseg/internal/models"
	"dicomseg/pkg/transfer"
)

// RenderSlice colorises a slice through a transfer function. Each voxel's
// color is scaled by its opacity, which is the same as compositing it once
// over a black background.
func (v *Viewer) RenderSlice(axis models.Axis, position int, tf transfer.Function) (*image.NRGBA, error) {
	p, err := v.planeAt(axis, position)
	if err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			val := p.at(x, y)
			o := tf.OpacityAt(val)
			c := tf.ColorAt(val)
			img.SetNRGBA(x, y, color.NRGBA{
				R: channel(c.R * o),
				G: channel(c.G * o),
				B: channel(c.B * o),
				A: 255,
			})
		}
	}
	return img, nil
}

func channel(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}

// MontageOptions controls PreviewMontage
type MontageOptions struct {
	// Slices is the number of equidistant axial slices shown
	Slices int
	// TileSize is the edge length of each square tile in pixels
	TileSize int
	// Transfer colorises the tiles when set; otherwise they are grayscale
	Transfer *transfer.Function
}

// PreviewMontage lays out equidistant axial slices side by side, each titled
// with its slice number, and saves the result to path
func (v *Viewer) PreviewMontage(path string, opts MontageOptions) error {
	img, err := v.Montage(opts)
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}

// Montage builds the preview image without saving it
func (v *Viewer) Montage(opts MontageOptions) (image.Image, error) {
	if opts.Slices <= 0 {
		opts.Slices = 5
	}
	if opts.TileSize <= 0 {
		opts.TileSize = 256
	}

	depth := v.vol.Dimensions().NZ
	if opts.Slices > depth {
		opts.Slices = depth
	}

	canvas := imaging.New(opts.Slices*opts.TileSize, opts.TileSize, color.Black)
	for i, pos := range evenPositions(depth, opts.Slices) {
		var tile image.Image
		var err error
		if opts.Transfer != nil {
			tile, err = v.RenderSlice(models.AxisZ, pos, *opts.Transfer)
		} else {
			tile, err = v.ExtractSlice(models.AxisZ, pos)
		}
		if err != nil {
			return nil, err
		}

		tile = imaging.Fit(tile, opts.TileSize, opts.TileSize, imaging.Lanczos)
		tile = addLabel(tile, fmt.Sprintf("Slice %d/%d", pos+1, depth))
		canvas = imaging.Paste(canvas, tile, image.Pt(i*opts.TileSize, 0))
	}

	return canvas, nil
}

// evenPositions spreads n positions evenly over [0, length)
func evenPositions(length, n int) []int {
	if n <= 1 {
		return []int{length / 2}
	}
	out := make([]int, n)
	for i := range out {
		out[i] = int(math.Round(float64(i) * float64(length-1) / float64(n-1)))
	}
	return out
}

// addLabel writes white text in the top left corner of an image
func addLabel(img image.Image, label string) image.Image {
	ctx := gg.NewContextForImage(img)
	ctx.SetRGB(1, 1, 1)
	ctx.DrawString(label, 4, 14)
	return ctx.Image()
}

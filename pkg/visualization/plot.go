package visualization

import (
	"fmt"
	"io"
	"os"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"dicomseg/pkg/transfer"
)

// FprintHistogram writes a console histogram of the intensities with the given
// number of bins and bar width
func (v *Viewer) FprintHistogram(w io.Writer, bins, width int) error {
	if bins <= 0 {
		bins = 25
	}
	if width <= 0 {
		width = 60
	}
	hist := histogram.Hist(bins, v.vol.Voxels())
	return histogram.Fprint(w, hist, histogram.Linear(width))
}

// chartSamples is the number of points each curve is sampled at
const chartSamples = 256

// PlotTransfer renders the opacity and RGB curves of a transfer function over
// the data range as a PNG
func PlotTransfer(w io.Writer, tf transfer.Function, r transfer.Range) error {
	if r.Max <= r.Min {
		return fmt.Errorf("cannot plot over empty range [%v, %v]", r.Min, r.Max)
	}

	xs := make([]float64, chartSamples)
	opacity := make([]float64, chartSamples)
	red := make([]float64, chartSamples)
	green := make([]float64, chartSamples)
	blue := make([]float64, chartSamples)

	for i := range xs {
		x := r.Min + (r.Max-r.Min)*float64(i)/float64(chartSamples-1)
		xs[i] = x
		opacity[i] = tf.OpacityAt(x)
		c := tf.ColorAt(x)
		red[i], green[i], blue[i] = c.R, c.G, c.B
	}

	series := func(name string, ys []float64, c drawing.Color, width float64) chart.Series {
		return chart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: c,
				StrokeWidth: width,
			},
		}
	}

	graph := chart.Chart{
		Width:  768,
		Height: 320,
		XAxis: chart.XAxis{
			Name:  "Intensity",
			Range: &chart.ContinuousRange{Min: r.Min, Max: r.Max},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: []chart.Series{
			series("opacity", opacity, drawing.ColorBlack, 3),
			series("red", red, drawing.ColorRed, 1),
			series("green", green, drawing.ColorGreen, 1),
			series("blue", blue, drawing.ColorBlue, 1),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// SaveTransferPlot writes PlotTransfer output to a file
func SaveTransferPlot(path string, tf transfer.Function, r transfer.Range) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := PlotTransfer(f, tf, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

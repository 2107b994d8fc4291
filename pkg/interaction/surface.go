package interaction

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"dicomseg/pkg/transfer"
)

// Surface is the render target driven by a Controller. Calls arrive from the
// controller's single event loop, one at a time.
type Surface interface {
	SetTransferFunction(f transfer.Function)
	SetSliderValue(s Slider, v float64)
	SetOverlayText(text string)
	ResetCamera()
	SetCamera(view CameraView)
	Redraw()
	Close()
}

// SliderSet records a forced slider update
type SliderSet struct {
	Slider Slider
	Value  float64
}

// Recorder is a headless Surface that keeps every call for inspection
type Recorder struct {
	Functions    []transfer.Function
	SliderSets   []SliderSet
	Overlays     []string
	Cameras      []CameraView
	CameraResets int
	Redraws      int
	Closed       bool
}

func (r *Recorder) SetTransferFunction(f transfer.Function) {
	r.Functions = append(r.Functions, f)
}

func (r *Recorder) SetSliderValue(s Slider, v float64) {
	r.SliderSets = append(r.SliderSets, SliderSet{Slider: s, Value: v})
}

func (r *Recorder) SetOverlayText(text string) {
	r.Overlays = append(r.Overlays, text)
}

func (r *Recorder) ResetCamera() { r.CameraResets++ }

func (r *Recorder) SetCamera(view CameraView) {
	r.Cameras = append(r.Cameras, view)
}

func (r *Recorder) Redraw() { r.Redraws++ }

func (r *Recorder) Close() { r.Closed = true }

// LastOverlay returns the most recent overlay text
func (r *Recorder) LastOverlay() string {
	if len(r.Overlays) == 0 {
		return ""
	}
	return r.Overlays[len(r.Overlays)-1]
}

// LogSurface reports every surface call through a logger and prints the
// overlay text to Out. OnRedraw, when set, receives the current transfer
// function on each redraw request.
type LogSurface struct {
	Out      io.Writer
	Log      zerolog.Logger
	OnRedraw func(f transfer.Function) error

	current transfer.Function
}

func (l *LogSurface) SetTransferFunction(f transfer.Function) {
	l.current = f
	l.Log.Debug().
		Int("opacity_points", len(f.Opacity)).
		Int("color_points", len(f.Color)).
		Msg("transfer function updated")
}

func (l *LogSurface) SetSliderValue(s Slider, v float64) {
	l.Log.Info().Str("slider", s.String()).Float64("value", v).Msg("slider clamped")
	if l.Out != nil {
		fmt.Fprintf(l.Out, "%s slider moved to %.1f\n", s, v)
	}
}

func (l *LogSurface) SetOverlayText(text string) {
	if l.Out != nil {
		fmt.Fprintln(l.Out, text)
	}
}

func (l *LogSurface) ResetCamera() {
	l.Log.Info().Msg("camera reset")
}

func (l *LogSurface) SetCamera(view CameraView) {
	l.Log.Info().Str("view", string(view)).Msg("camera preset")
}

func (l *LogSurface) Redraw() {
	if l.OnRedraw == nil {
		return
	}
	if err := l.OnRedraw(l.current); err != nil {
		l.Log.Error().Err(err).Msg("redraw failed")
	}
}

func (l *LogSurface) Close() {
	l.Log.Info().Msg("surface closed")
}

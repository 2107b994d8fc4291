// Package interaction routes slider drags and key presses to a threshold
// model and keeps a render surface in sync with it.
//
// Events are handled one at a time. Each one runs to completion (model update,
// transfer function regeneration, stats, redraw request) before the next is
// read, so no locking is needed.
package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"dicomseg/pkg/threshold"
	"dicomseg/pkg/transfer"
	"dicomseg/pkg/volume"
)

// ErrClosed is returned for events delivered after quit
var ErrClosed = errors.New("interaction: controller closed")

// ErrDragInProgress is returned when a drag starts on one slider while the
// other is still being dragged
var ErrDragInProgress = errors.New("interaction: another slider is being dragged")

// Session is the explicit per-window state: the shared volume, the threshold
// model and the surface it draws on. Several sessions may share one volume.
type Session struct {
	Volume  *volume.Buffer
	Model   *threshold.Model
	Surface Surface
	Log     zerolog.Logger
}

// NewSession binds a model to a surface
func NewSession(model *threshold.Model, surface Surface, logger zerolog.Logger) *Session {
	return &Session{
		Volume:  model.Volume(),
		Model:   model,
		Surface: surface,
		Log:     logger.With().Str("component", "interaction").Logger(),
	}
}

// State of the controller
type State int

const (
	Idle State = iota
	Dragging
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller is the Idle -> Dragging(slider) -> Idle state machine with a
// terminal Closed state
type Controller struct {
	s        *Session
	state    State
	dragging Slider
	// stale marks a drag interrupted by a reset. Its remaining moves are
	// dropped until the next DragStart.
	stale bool
}

// NewController creates a controller and pushes the initial model state to
// the surface
func NewController(s *Session) *Controller {
	c := &Controller{s: s, state: Idle}
	s.Surface.SetSliderValue(LowerSlider, s.Model.Lower())
	s.Surface.SetSliderValue(UpperSlider, s.Model.Upper())
	c.publish()
	return c
}

// State returns the current state
func (c *Controller) State() State { return c.state }

// Dragging returns the slider being dragged, if any
func (c *Controller) Dragging() (Slider, bool) {
	return c.dragging, c.state == Dragging
}

// Handle processes one event synchronously
func (c *Controller) Handle(ev Event) error {
	if c.state == Closed {
		return ErrClosed
	}

	switch ev.Kind {
	case DragStart:
		if c.state == Dragging && c.dragging != ev.Slider {
			return fmt.Errorf("%w: %s while dragging %s", ErrDragInProgress, ev.Slider, c.dragging)
		}
		c.state = Dragging
		c.dragging = ev.Slider
		c.stale = false
		return nil

	case DragMove:
		if c.state == Dragging && c.dragging != ev.Slider {
			return fmt.Errorf("%w: %s while dragging %s", ErrDragInProgress, ev.Slider, c.dragging)
		}
		if c.dropStale(ev) {
			return nil
		}
		return c.apply(ev.Slider, ev.Value)

	case DragEnd:
		if c.state == Dragging && c.dragging != ev.Slider {
			return fmt.Errorf("%w: %s while dragging %s", ErrDragInProgress, ev.Slider, c.dragging)
		}
		if c.dropStale(ev) {
			c.stale = false
			return nil
		}
		err := c.apply(ev.Slider, ev.Value)
		c.state = Idle
		return err

	case KeyPress:
		return c.key(ev.Key)

	default:
		return fmt.Errorf("interaction: unknown event %v", ev.Kind)
	}
}

func (c *Controller) dropStale(ev Event) bool {
	if !c.stale || c.state == Dragging || ev.Slider != c.dragging {
		return false
	}
	c.s.Log.Debug().Str("slider", ev.Slider.String()).Str("event", ev.Kind.String()).Msg("dropped drag event after reset")
	return true
}

// apply moves one slider through the model, forces the widget back when the
// value was clamped and requests a redraw
func (c *Controller) apply(s Slider, raw float64) error {
	var applied float64
	switch s {
	case LowerSlider:
		applied = c.s.Model.SetLower(raw)
	case UpperSlider:
		applied = c.s.Model.SetUpper(raw)
	default:
		return fmt.Errorf("interaction: unknown slider %v", s)
	}

	if applied != raw {
		c.s.Surface.SetSliderValue(s, applied)
	}

	c.s.Log.Debug().
		Str("slider", s.String()).
		Float64("raw", raw).
		Float64("applied", applied).
		Msg("threshold moved")

	c.publish()
	return nil
}

func (c *Controller) key(k rune) error {
	switch k {
	case KeyReset:
		c.s.Model.Reset()
		c.s.Surface.SetSliderValue(LowerSlider, c.s.Model.Lower())
		c.s.Surface.SetSliderValue(UpperSlider, c.s.Model.Upper())
		if c.state == Dragging {
			c.stale = true
		}
		c.state = Idle
		c.publish()
		c.s.Log.Info().Float64("lower", c.s.Model.Lower()).Float64("upper", c.s.Model.Upper()).Msg("thresholds reset")
	case KeyCoronal:
		c.camera(Coronal)
	case KeyAxial:
		c.camera(Axial)
	case KeySagittal:
		c.camera(Sagittal)
	case KeyResetCamera:
		c.s.Surface.ResetCamera()
		c.s.Surface.Redraw()
	case KeyQuit:
		c.close()
	default:
		c.s.Log.Debug().Str("key", string(k)).Msg("unbound key")
	}
	return nil
}

func (c *Controller) camera(view CameraView) {
	c.s.Surface.SetCamera(view)
	c.s.Surface.Redraw()
}

func (c *Controller) close() {
	if c.state == Closed {
		return
	}
	c.state = Closed
	c.s.Surface.Close()
	c.s.Log.Info().Msg("session closed")
}

// publish pushes the current transfer function and overlay, then redraws
func (c *Controller) publish() {
	c.s.Surface.SetTransferFunction(c.s.Model.Transfer())
	c.s.Surface.SetOverlayText(Overlay(c.s.Model))
	c.s.Surface.Redraw()
}

// Overlay formats the threshold band and visible share for display
func Overlay(m *threshold.Model) string {
	st := m.Stats()
	vis := m.Visible()
	if m.Scheme().Kind == transfer.BinaryBand {
		return fmt.Sprintf("Lower: %.1f  Upper: %.1f  Visible: %.2f%%",
			m.Lower(), m.Upper(), vis.Visible)
	}
	return fmt.Sprintf("Lower: %.1f  Upper: %.1f  Below: %.2f%%  Band: %.2f%%  Above: %.2f%%  Weighted: %.2f%%",
		m.Lower(), m.Upper(), st.BelowPct, st.BetweenPct, st.AbovePct, vis.Weighted)
}

// Run handles events until quit, until the channel closes or until ctx is
// done. Rejected events are logged and skipped.
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			c.close()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				c.close()
				return nil
			}
			if err := c.Handle(ev); err != nil {
				c.s.Log.Warn().Err(err).Str("event", ev.Kind.String()).Msg("event rejected")
			}
			if c.state == Closed {
				return nil
			}
		}
	}
}

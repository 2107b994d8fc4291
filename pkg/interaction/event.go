package interaction

import "fmt"

// Slider identifies one of the two threshold sliders
type Slider int

const (
	LowerSlider Slider = iota
	UpperSlider
)

func (s Slider) String() string {
	switch s {
	case LowerSlider:
		return "lower"
	case UpperSlider:
		return "upper"
	default:
		return fmt.Sprintf("Slider(%d)", int(s))
	}
}

// EventKind is the type of an input event
type EventKind int

const (
	DragStart EventKind = iota
	DragMove
	DragEnd
	KeyPress
)

func (k EventKind) String() string {
	switch k {
	case DragStart:
		return "drag-start"
	case DragMove:
		return "drag-move"
	case DragEnd:
		return "drag-end"
	case KeyPress:
		return "key-press"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single input delivered by the render surface. Value is the raw
// slider value for drag events; Key is set for key presses.
type Event struct {
	Kind   EventKind
	Slider Slider
	Value  float64
	Key    rune
}

// Drag builds the start, move and end events of a complete slider drag to v
func Drag(s Slider, v float64) []Event {
	return []Event{
		{Kind: DragStart, Slider: s, Value: v},
		{Kind: DragMove, Slider: s, Value: v},
		{Kind: DragEnd, Slider: s, Value: v},
	}
}

// Key builds a key press event
func Key(k rune) Event {
	return Event{Kind: KeyPress, Key: k}
}

// Key bindings
const (
	KeyReset       = 'r'
	KeyCoronal     = 'c'
	KeyAxial       = 'a'
	KeySagittal    = 's'
	KeyResetCamera = 'v'
	KeyQuit        = 'q'
)

// CameraView is a named camera preset
type CameraView string

const (
	Coronal  CameraView = "coronal"
	Axial    CameraView = "axial"
	Sagittal CameraView = "sagittal"
)

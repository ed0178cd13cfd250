package engine

import "ScriptInk/internal/state"

// Mode is the interaction mode chosen by the toolbar.
type Mode int

const (
	ModeDraw Mode = iota
	ModeErase
	ModeView
)

func (m Mode) String() string {
	switch m {
	case ModeDraw:
		return "draw"
	case ModeErase:
		return "erase"
	case ModeView:
		return "view"
	}
	return "unknown"
}

// Event is an input delivered to Router.Dispatch.
type Event interface{ event() }

// PointerDown is a single mouse button or pen contact going down.
type PointerDown struct {
	Position state.Point
	Surface  state.Surface
}

// PointerMove reports the raw pointer position together with the surface
// geometry at the time of the event.
type PointerMove struct {
	Position state.Point
	Surface  state.Surface
}

// PointerUp is the contact lifting.
type PointerUp struct{}

// PointerLeave is the pointer leaving the surface.
type PointerLeave struct{}

// StrokeTapped is the renderer reporting a click on the stroke at Index.
type StrokeTapped struct{ Index int }

// EraseAt asks the engine to hit-test a raw position and remove the stroke
// found there.
type EraseAt struct {
	Position state.Point
	Surface  state.Surface
}

// Wheel is a wheel or trackpad scroll at Cursor (screen space). Precise is
// set when the precision-zoom modifier is held.
type Wheel struct {
	Cursor  state.Point
	DX, DY  float64
	Precise bool
}

// TouchStart reports the touches present after a new contact.
type TouchStart struct {
	Touches []state.Point
	Surface state.Surface
}

// TouchMove reports all touches currently present.
type TouchMove struct {
	Touches []state.Point
	Surface state.Surface
}

// TouchEnd reports how many touches remain after a contact lifted.
type TouchEnd struct{ Remaining int }

// Drag is the renderer's native drag reporting the absolute stage position.
type Drag struct{ Position state.Point }

// Clear empties the layer.
type Clear struct{}

// Hydrate replaces the layer with one supplied by the store.
type Hydrate struct{ Layer state.Layer }

// ResetView returns to scale 1 with no translation.
type ResetView struct{}

func (PointerDown) event()  {}
func (PointerMove) event()  {}
func (PointerUp) event()    {}
func (PointerLeave) event() {}
func (StrokeTapped) event() {}
func (EraseAt) event()      {}
func (Wheel) event()        {}
func (TouchStart) event()   {}
func (TouchMove) event()    {}
func (TouchEnd) event()     {}
func (Drag) event()         {}
func (Clear) event()        {}
func (Hydrate) event()      {}
func (ResetView) event()    {}

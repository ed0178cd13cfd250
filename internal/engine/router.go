// Package engine routes raw input into stroke and viewport transitions and
// binds the result to an annotation store.
package engine

import (
	"ScriptInk/internal/state"
)

// DefaultHitTolerance is the eraser slack around a stroke, in screen pixels.
const DefaultHitTolerance = 4.0

// State is the snapshot the renderer reads every frame. It is never
// modified after Dispatch returns it.
type State struct {
	Layer     state.Layer
	Drawing   bool
	Viewport  state.Viewport
	Draggable bool
	// Ready is false until the first layer has been hydrated.
	Ready bool
}

// Router is the gesture state machine. It is driven from a single event
// loop and is not safe for concurrent use.
type Router struct {
	mode      Mode
	brush     state.Brush
	strokes   state.Strokes
	viewport  state.Viewport
	draggable bool
	ready     bool
	touches   int

	// multiTouch is set once a second contact lands and holds until every
	// contact has lifted.
	multiTouch bool

	wheelZoom bool
	tolerance float64
	persist   func(state.Layer)
}

// Option configures a Router.
type Option func(*Router)

// WithPersist sets the callback invoked with the new layer after every
// transition that changed persisted content.
func WithPersist(fn func(state.Layer)) Option {
	return func(r *Router) { r.persist = fn }
}

// WithWheelZoom makes an unmodified wheel zoom in coarse steps instead of
// panning.
func WithWheelZoom(on bool) Option {
	return func(r *Router) { r.wheelZoom = on }
}

// WithHitTolerance sets the eraser slack in screen pixels.
func WithHitTolerance(px float64) Option {
	return func(r *Router) { r.tolerance = px }
}

// WithMode sets the initial mode.
func WithMode(m Mode) Option {
	return func(r *Router) { r.mode = m }
}

// NewRouter returns a router in draw mode waiting for its first layer.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		brush:     state.DefaultBrush,
		strokes:   state.NewStrokes(state.Layer{}),
		viewport:  state.NewViewport(),
		tolerance: DefaultHitTolerance,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.draggable = r.mode == ModeView
	return r
}

// Mode returns the current interaction mode.
func (r *Router) Mode() Mode { return r.mode }

// Brush returns the paint used by the next stroke.
func (r *Router) Brush() state.Brush { return r.brush }

// SetBrush sets the paint used by the next stroke. Missing fields fall back
// to the default brush.
func (r *Router) SetBrush(b state.Brush) { r.brush = b.Normalize() }

// SetMode switches the interaction mode. A stroke still in progress is
// finished first so it cannot be left open across modes.
func (r *Router) SetMode(m Mode) State {
	if m != r.mode {
		r.endStroke()
		r.mode = m
		r.draggable = m == ModeView
	}
	return r.State()
}

// State returns the current snapshot.
func (r *Router) State() State {
	return State{
		Layer:     r.strokes.Layer,
		Drawing:   r.strokes.Drawing,
		Viewport:  r.viewport,
		Draggable: r.draggable,
		Ready:     r.ready,
	}
}

// Dispatch applies one event and returns the new snapshot. Events that do
// not apply to the current state are ignored.
func (r *Router) Dispatch(ev Event) State {
	switch ev := ev.(type) {
	case Hydrate:
		r.strokes = r.strokes.Replace(ev.Layer)
		r.ready = true
	case PointerDown:
		r.pointerDown()
	case PointerMove:
		r.pointerMove(ev.Position, ev.Surface)
	case PointerUp, PointerLeave:
		r.pointerUp()
	case StrokeTapped:
		if r.mode == ModeErase {
			r.remove(ev.Index)
		}
	case EraseAt:
		r.eraseAt(ev.Position, ev.Surface)
	case Wheel:
		r.wheel(ev)
	case TouchStart:
		r.touch(ev.Touches, ev.Surface, true)
	case TouchMove:
		r.touch(ev.Touches, ev.Surface, false)
	case TouchEnd:
		r.touchEnd(ev.Remaining)
	case Drag:
		if r.mode == ModeView && r.draggable {
			r.viewport = r.viewport.Drag(ev.Position)
		}
	case ResetView:
		r.viewport = state.NewViewport()
	case Clear:
		if r.ready {
			var changed bool
			r.strokes, changed = r.strokes.Clear()
			r.changed(changed)
		}
	}
	return r.State()
}

func (r *Router) pointerDown() {
	switch r.mode {
	case ModeDraw:
		if r.ready {
			r.strokes = r.strokes.Begin(r.brush)
		}
	case ModeView:
		r.draggable = true
	}
}

func (r *Router) pointerMove(raw state.Point, s state.Surface) {
	switch r.mode {
	case ModeDraw:
		r.strokes = r.strokes.Continue(state.ToContent(raw, s))
	case ModeView:
		r.draggable = true
	}
}

func (r *Router) pointerUp() {
	switch r.mode {
	case ModeDraw:
		r.endStroke()
	case ModeView:
		r.draggable = true
	}
}

func (r *Router) endStroke() {
	var changed bool
	r.strokes, changed = r.strokes.End()
	r.changed(changed)
}

func (r *Router) remove(i int) {
	if !r.ready {
		return
	}
	var changed bool
	r.strokes, changed = r.strokes.Remove(i)
	r.changed(changed)
}

func (r *Router) eraseAt(raw state.Point, s state.Surface) {
	if r.mode != ModeErase {
		return
	}
	scale := s.Scale
	if !(scale > 0) {
		scale = 1
	}
	if i, ok := state.HitTest(r.strokes.Layer, state.ToContent(raw, s), r.tolerance/scale); ok {
		r.remove(i)
	}
}

func (r *Router) wheel(ev Wheel) {
	if r.mode != ModeView {
		return
	}
	switch {
	case ev.Precise:
		r.viewport = r.viewport.WheelZoom(ev.Cursor, ev.DY, true)
	case r.wheelZoom:
		r.viewport = r.viewport.WheelZoom(ev.Cursor, ev.DY, false)
	default:
		r.viewport = r.viewport.WheelPan(ev.DX, ev.DY)
	}
}

func (r *Router) touch(touches []state.Point, s state.Surface, start bool) {
	r.touches = len(touches)
	switch {
	case len(touches) >= 2:
		r.draggable = false
		if !r.multiTouch {
			r.multiTouch = true
			// The first finger's ink stays; the remaining finger must not
			// continue it with a jump.
			r.endStroke()
		}
		if r.mode == ModeView {
			r.viewport = r.viewport.PinchUpdate(touches[0], touches[1])
		}
	case r.multiTouch:
	case len(touches) == 1 && start:
		r.pointerDown()
	case len(touches) == 1:
		r.pointerMove(touches[0], s)
	}
}

func (r *Router) touchEnd(remaining int) {
	prev := r.touches
	r.touches = max(remaining, 0)
	if prev >= 2 && r.touches < 2 {
		r.viewport = r.viewport.PinchEnd()
	}
	if r.touches == 0 {
		r.multiTouch = false
		r.pointerUp()
	}
}

func (r *Router) changed(persist bool) {
	if persist && r.persist != nil {
		r.persist(r.strokes.Layer)
	}
}

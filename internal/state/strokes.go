package state

import (
	"math"
	"strings"
)

// Brush is the paint the next stroke starts with.
type Brush struct {
	Color string        `json:"color"`
	Width float64       `json:"width"`
	Type  CompositeMode `json:"type"`
}

// DefaultBrush is red ink, the marker's pen.
var DefaultBrush = Brush{Color: "#ff0000", Width: 3, Type: CompositeInk}

// Normalize fills the fields a stored stroke cannot do without from
// DefaultBrush, so every stroke drawn with b can be loaded back.
func (b Brush) Normalize() Brush {
	if !b.Type.Valid() {
		b.Type = CompositeInk
	}
	if !(b.Width > 0) || math.IsInf(b.Width, 0) {
		b.Width = DefaultBrush.Width
	}
	if strings.TrimSpace(b.Color) == "" {
		b.Color = DefaultBrush.Color
	}
	return b
}

// initialPoints is the capacity a new stroke starts with.
const initialPoints = 64

// Strokes is the foreground annotation plus the drawing flag. Every
// transition returns a new value; nothing an older value can see is ever
// written to. The bool result of content transitions reports whether the
// change must be persisted.
type Strokes struct {
	Layer   Layer
	Drawing bool

	// active is the index of the stroke being drawn, -1 when idle.
	active int

	// tail is how far the active stroke has been written into its backing
	// array. Only a value whose points end there may append in place.
	tail *int
}

// NewStrokes returns an idle stroke layer holding layer.
func NewStrokes(layer Layer) Strokes {
	return Strokes{Layer: layer, active: -1}
}

// Active returns the index of the stroke being drawn.
func (s Strokes) Active() (int, bool) {
	if !s.Drawing || s.active < 0 || s.active >= len(s.Layer) {
		return -1, false
	}
	return s.active, true
}

// Replace overwrites the layer wholesale. It came from the store, so it is
// never persisted back, and any stroke in progress is abandoned.
func (s Strokes) Replace(layer Layer) Strokes {
	return NewStrokes(layer)
}

// Begin starts a new empty stroke painted with b. Missing brush fields
// fall back to DefaultBrush.
func (s Strokes) Begin(b Brush) Strokes {
	b = b.Normalize()
	next := make(Layer, len(s.Layer), len(s.Layer)+1)
	copy(next, s.Layer)
	next = append(next, Stroke{
		Points: make([]float64, 0, initialPoints),
		Type:   b.Type,
		Color:  b.Color,
		Width:  b.Width,
	})
	return Strokes{Layer: next, Drawing: true, active: len(next) - 1, tail: new(int)}
}

// Continue appends p to the active stroke. It is a no-op when not drawing.
// Points are written past the end of the shared backing array only, which
// no older value can see; a value continued a second time gets a copy.
func (s Strokes) Continue(p Point) Strokes {
	i, ok := s.Active()
	if !ok {
		return s
	}
	next := make(Layer, len(s.Layer))
	copy(next, s.Layer)
	pts := next[i].Points
	if s.tail == nil || *s.tail != len(pts) || cap(pts)-len(pts) < 2 {
		grown := make([]float64, len(pts), 2*len(pts)+initialPoints)
		copy(grown, pts)
		pts = grown
		s.tail = new(int)
	}
	pts = append(pts, p.X, p.Y)
	*s.tail = len(pts)
	next[i].Points = pts
	s.Layer = next
	return s
}

// End finishes the active stroke. Only a stroke that was being drawn is
// persisted; a second End is a silent no-op.
func (s Strokes) End() (Strokes, bool) {
	if !s.Drawing {
		return s, false
	}
	s.Drawing = false
	s.active = -1
	return s, true
}

// Remove deletes the stroke at index i, keeping the order of the rest.
// An out-of-range index is a no-op. Removing the stroke being drawn stops
// the drawing.
func (s Strokes) Remove(i int) (Strokes, bool) {
	if i < 0 || i >= len(s.Layer) {
		return s, false
	}
	next := make(Layer, 0, len(s.Layer)-1)
	next = append(next, s.Layer[:i]...)
	next = append(next, s.Layer[i+1:]...)
	s.Layer = next
	switch {
	case !s.Drawing:
	case s.active == i:
		s.Drawing = false
		s.active = -1
	case s.active > i:
		s.active--
	}
	return s, true
}

// Clear empties the layer.
func (s Strokes) Clear() (Strokes, bool) {
	return Strokes{Layer: Layer{}, active: -1}, true
}

package state

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Point is a coordinate. Unless stated otherwise it is in content space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Mul returns p scaled by s.
func (p Point) Mul(s float64) Point { return Point{X: p.X * s, Y: p.Y * s} }

// Div returns p divided by s.
func (p Point) Div(s float64) Point { return Point{X: p.X / s, Y: p.Y / s} }

// CompositeMode selects how a stroke is blended onto the strokes beneath it.
type CompositeMode string

const (
	// CompositeInk paints normally.
	CompositeInk CompositeMode = "source-over"
	// CompositeErase removes the ink underneath.
	CompositeErase CompositeMode = "destination-out"
)

// Valid reports whether m is a known composite mode.
func (m CompositeMode) Valid() bool {
	return m == CompositeInk || m == CompositeErase
}

// Stroke is one continuous ink path. Points holds flattened x,y pairs and
// always has even length.
type Stroke struct {
	Points []float64     `json:"points"`
	Type   CompositeMode `json:"type"`
	Color  string        `json:"color"`
	Width  float64       `json:"width"`
}

// Len returns the number of points in the stroke.
func (s Stroke) Len() int { return len(s.Points) / 2 }

// At returns the i-th point.
func (s Stroke) At(i int) Point { return Point{X: s.Points[2*i], Y: s.Points[2*i+1]} }

// MarshalJSON writes an empty stroke as "points":[] rather than null.
func (s Stroke) MarshalJSON() ([]byte, error) {
	type wire Stroke
	w := wire(s)
	if w.Points == nil {
		w.Points = []float64{}
	}
	return json.Marshal(w)
}

// Validate checks the invariants of the serialized stroke shape.
func (s Stroke) Validate() error {
	if len(s.Points)%2 != 0 {
		return ErrOddPoints
	}
	if !(s.Width > 0) {
		return ErrBadWidth
	}
	if !s.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrBadType, s.Type)
	}
	if s.Color == "" {
		return ErrNoColor
	}
	return nil
}

// Layer is the ordered stroke collection of one page. Later strokes render on
// top of earlier ones. A Layer held by a snapshot is never written to.
type Layer []Stroke

// MarshalJSON writes a nil layer as [].
func (l Layer) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Stroke(l))
}

// Validate checks every stroke of l as DecodeLayer would. A stroke without
// a type counts as ink.
func (l Layer) Validate() error {
	for i, s := range l {
		if s.Type == "" {
			s.Type = CompositeInk
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stroke %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy of l.
func (l Layer) Clone() Layer {
	if l == nil {
		return nil
	}
	out := make(Layer, len(l))
	for i, s := range l {
		if s.Points != nil {
			pts := make([]float64, len(s.Points))
			copy(pts, s.Points)
			s.Points = pts
		}
		out[i] = s
	}
	return out
}

// Validation errors returned by DecodeLayer.
var (
	ErrOddPoints = errors.New("stroke points must be x,y pairs")
	ErrBadWidth  = errors.New("stroke width must be positive")
	ErrBadType   = errors.New("unknown stroke type")
	ErrNoColor   = errors.New("stroke color is required")
)

// DecodeLayer parses and validates a serialized layer. A stroke without a
// type is treated as ink.
func DecodeLayer(data []byte) (Layer, error) {
	var layer Layer
	if err := json.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("decode layer: %w", err)
	}
	if layer == nil {
		layer = Layer{}
	}
	for i := range layer {
		if layer[i].Type == "" {
			layer[i].Type = CompositeInk
		}
		if layer[i].Points == nil {
			layer[i].Points = []float64{}
		}
	}
	if err := layer.Validate(); err != nil {
		return nil, err
	}
	return layer, nil
}

package state

import "math"

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Surface is the geometry the renderer reports for the content surface at
// event time: its absolute position on screen and its current scale.
type Surface struct {
	Origin Point
	Scale  float64
}

// ToContent converts a raw device coordinate into content space.
// A non-positive scale is treated as 1.
func ToContent(raw Point, s Surface) Point {
	scale := s.Scale
	if !(scale > 0) {
		scale = 1
	}
	return raw.Sub(s.Origin).Div(scale)
}

// DistanceToSegment returns the distance from p to the segment ab.
func DistanceToSegment(p, a, b Point) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return Distance(p, a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	return Distance(p, a.Add(ab.Mul(t)))
}

// Rect is an axis-aligned rectangle in content space.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Bounds returns the bounding box of the stroke padded by pad on every side.
// The second result is false for a stroke without points.
func (s Stroke) Bounds(pad float64) (Rect, bool) {
	if s.Len() == 0 {
		return Rect{}, false
	}
	minX, minY := s.Points[0], s.Points[1]
	maxX, maxY := minX, minY
	for i := 1; i < s.Len(); i++ {
		p := s.At(i)
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{
		X:      minX - pad,
		Y:      minY - pad,
		Width:  maxX - minX + 2*pad,
		Height: maxY - minY + 2*pad,
	}, true
}

// Hits reports whether p lies on the stroke's painted area grown by tolerance.
func (s Stroke) Hits(p Point, tolerance float64) bool {
	reach := s.Width/2 + tolerance
	box, ok := s.Bounds(reach)
	if !ok || !box.Contains(p) {
		return false
	}
	if s.Len() == 1 {
		return Distance(p, s.At(0)) <= reach
	}
	for i := 1; i < s.Len(); i++ {
		if DistanceToSegment(p, s.At(i-1), s.At(i)) <= reach {
			return true
		}
	}
	return false
}

// HitTest returns the index of the top-most stroke under p.
func HitTest(layer Layer, p Point, tolerance float64) (int, bool) {
	for i := len(layer) - 1; i >= 0; i-- {
		if layer[i].Hits(p, tolerance) {
			return i, true
		}
	}
	return -1, false
}

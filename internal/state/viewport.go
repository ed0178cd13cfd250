package state

import "math"

const (
	MinScale = 0.1
	MaxScale = 10.0

	// WheelZoomRatio is the per-tick factor of a coarse mouse wheel.
	WheelZoomRatio = 1.02
	// PreciseZoomStep converts a precise wheel delta into a scale change.
	PreciseZoomStep = 0.01
	// WheelPanFactor scales wheel deltas into translation.
	WheelPanFactor = 0.75
)

// ClampScale bounds s to [MinScale, MaxScale]. NaN clamps to 1.
func ClampScale(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// Viewport is the pan/zoom state. Screen = content*Scale + Translation.
// Methods never modify the receiver.
type Viewport struct {
	Scale             float64 `json:"scale"`
	Translation       Point   `json:"translation"`
	LastPinchDistance float64 `json:"last_pinch_distance"`
}

// NewViewport returns an identity viewport.
func NewViewport() Viewport {
	return Viewport{Scale: 1}
}

// WithScale returns v with its scale set to the clamped value of s.
func (v Viewport) WithScale(s float64) Viewport {
	v.Scale = ClampScale(s)
	return v
}

// Surface reports v as renderer geometry.
func (v Viewport) Surface() Surface {
	return Surface{Origin: v.Translation, Scale: v.Scale}
}

// ToContent maps a screen point into content space.
func (v Viewport) ToContent(screen Point) Point {
	return ToContent(screen, v.Surface())
}

// ToScreen maps a content point onto the screen.
func (v Viewport) ToScreen(content Point) Point {
	return content.Mul(v.Scale).Add(v.Translation)
}

// zoomAbout rescales to newScale keeping the content point under the screen
// point anchor fixed.
func (v Viewport) zoomAbout(anchor Point, newScale float64) Viewport {
	fixed := v.ToContent(anchor)
	v.Scale = ClampScale(newScale)
	v.Translation = anchor.Sub(fixed.Mul(v.Scale))
	return v
}

// WheelZoom zooms about the cursor (screen space). A coarse wheel steps by
// WheelZoomRatio per event, zooming in for negative deltaY; a precise wheel
// subtracts deltaY*PreciseZoomStep from the scale.
func (v Viewport) WheelZoom(cursor Point, deltaY float64, precise bool) Viewport {
	scale := v.Scale
	switch {
	case precise:
		scale -= deltaY * PreciseZoomStep
	case deltaY < 0:
		scale *= WheelZoomRatio
	case deltaY > 0:
		scale /= WheelZoomRatio
	}
	return v.zoomAbout(cursor, scale)
}

// WheelPan moves the view against the wheel deltas.
func (v Viewport) WheelPan(dx, dy float64) Viewport {
	v.Translation = v.Translation.Add(Point{X: -WheelPanFactor * dx, Y: -WheelPanFactor * dy})
	return v
}

// PinchUpdate applies one frame of a two-finger pinch. The first frame only
// records the baseline distance.
func (v Viewport) PinchUpdate(t1, t2 Point) Viewport {
	dist := Distance(t1, t2)
	if v.LastPinchDistance == 0 {
		v.LastPinchDistance = dist
		return v
	}
	v = v.zoomAbout(Midpoint(t1, t2), v.Scale*dist/v.LastPinchDistance)
	v.LastPinchDistance = dist
	return v
}

// PinchEnd forgets the pinch baseline.
func (v Viewport) PinchEnd() Viewport {
	v.LastPinchDistance = 0
	return v
}

// Drag sets the translation to the absolute stage position reported by a drag.
func (v Viewport) Drag(pos Point) Viewport {
	v.Translation = pos
	return v
}

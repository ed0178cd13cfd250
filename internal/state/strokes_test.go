package state

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func drawStroke(s Strokes, b Brush, pts ...Point) Strokes {
	s = s.Begin(b)
	for _, p := range pts {
		s = s.Continue(p)
	}
	s, _ = s.End()
	return s
}

func TestStrokesDrawScenario(t *testing.T) {
	s := NewStrokes(Layer{})
	s = s.Begin(Brush{Color: "#ff0000", Width: 5})
	s = s.Continue(Pt(0, 0))
	s = s.Continue(Pt(10, 10))
	s, persist := s.End()

	if !persist {
		t.Fatal("expected end of stroke to persist")
	}
	want := Layer{{Points: []float64{0, 0, 10, 10}, Type: CompositeInk, Color: "#ff0000", Width: 5}}
	if !reflect.DeepEqual(s.Layer, want) {
		t.Fatalf("expected layer %+v, got %+v", want, s.Layer)
	}
	if s.Drawing {
		t.Fatal("expected drawing to stop")
	}
}

func TestStrokesContinueWithoutBeginIsNoop(t *testing.T) {
	base := drawStroke(NewStrokes(Layer{}), DefaultBrush, Pt(1, 1), Pt(2, 2))
	before := base.Layer.Clone()

	s := base
	for i := 0; i < 5; i++ {
		s = s.Continue(Pt(float64(i), 3))
	}
	if !reflect.DeepEqual(s.Layer, before) {
		t.Fatalf("expected layer unchanged, got %+v", s.Layer)
	}

	fresh := NewStrokes(Layer{}).Continue(Pt(4, 4))
	if len(fresh.Layer) != 0 {
		t.Fatalf("expected empty layer, got %+v", fresh.Layer)
	}
}

func TestStrokesEndTwicePersistsOnce(t *testing.T) {
	s := NewStrokes(Layer{}).Begin(DefaultBrush).Continue(Pt(1, 2))
	s, first := s.End()
	s, second := s.End()
	if !first || second {
		t.Fatalf("expected persist flags true,false got %v,%v", first, second)
	}
	if len(s.Layer) != 1 {
		t.Fatalf("expected one stroke, got %d", len(s.Layer))
	}
}

func TestStrokesZeroPointStrokeKept(t *testing.T) {
	s, persist := NewStrokes(Layer{}).Begin(DefaultBrush).End()
	if !persist {
		t.Fatal("expected tap stroke to persist")
	}
	if len(s.Layer) != 1 || len(s.Layer[0].Points) != 0 {
		t.Fatalf("expected one empty stroke, got %+v", s.Layer)
	}
}

func TestStrokesRemove(t *testing.T) {
	layer := Layer{
		{Points: []float64{0, 0}, Type: CompositeInk, Color: "a", Width: 1},
		{Points: []float64{1, 1}, Type: CompositeInk, Color: "b", Width: 1},
		{Points: []float64{2, 2}, Type: CompositeInk, Color: "c", Width: 1},
	}
	tests := []struct {
		name    string
		index   int
		persist bool
		colors  []string
	}{
		{"first", 0, true, []string{"b", "c"}},
		{"middle", 1, true, []string{"a", "c"}},
		{"last", 2, true, []string{"a", "b"}},
		{"negative", -1, false, []string{"a", "b", "c"}},
		{"past end", 3, false, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, persist := NewStrokes(layer).Remove(tt.index)
			if persist != tt.persist {
				t.Fatalf("expected persist %v, got %v", tt.persist, persist)
			}
			var colors []string
			for _, st := range s.Layer {
				colors = append(colors, st.Color)
			}
			if !reflect.DeepEqual(colors, tt.colors) {
				t.Fatalf("expected %v, got %v", tt.colors, colors)
			}
		})
	}
	if len(layer) != 3 || layer[0].Color != "a" {
		t.Fatalf("expected source layer untouched, got %+v", layer)
	}
}

func TestStrokesRemoveActiveStopsDrawing(t *testing.T) {
	s := drawStroke(NewStrokes(Layer{}), DefaultBrush, Pt(0, 0))
	s = s.Begin(DefaultBrush).Continue(Pt(5, 5))

	s, _ = s.Remove(0)
	if i, ok := s.Active(); !ok || i != 0 {
		t.Fatalf("expected active stroke shifted to 0, got %d %v", i, ok)
	}
	s = s.Continue(Pt(6, 6))
	if got := s.Layer[0].Points; !reflect.DeepEqual(got, []float64{5, 5, 6, 6}) {
		t.Fatalf("expected points to follow active stroke, got %v", got)
	}

	s, _ = s.Remove(0)
	if s.Drawing {
		t.Fatal("expected drawing to stop once its stroke is removed")
	}
	if _, persist := s.End(); persist {
		t.Fatal("expected end after removal not to persist")
	}
}

func TestStrokesClear(t *testing.T) {
	s := drawStroke(NewStrokes(Layer{}), DefaultBrush, Pt(0, 0))
	s = s.Begin(DefaultBrush)
	s, persist := s.Clear()
	if !persist {
		t.Fatal("expected clear to persist")
	}
	if s.Layer == nil || len(s.Layer) != 0 {
		t.Fatalf("expected empty non-nil layer, got %#v", s.Layer)
	}
	if s = s.Continue(Pt(1, 1)); len(s.Layer) != 0 {
		t.Fatalf("expected continue after clear to be a no-op, got %+v", s.Layer)
	}
}

func TestStrokesSnapshotsAreIndependent(t *testing.T) {
	a := NewStrokes(Layer{}).Begin(DefaultBrush).Continue(Pt(1, 1))
	b := a.Continue(Pt(2, 2))
	c := a.Continue(Pt(3, 3))

	if got := a.Layer[0].Points; !reflect.DeepEqual(got, []float64{1, 1}) {
		t.Fatalf("expected earlier snapshot unchanged, got %v", got)
	}
	if got := b.Layer[0].Points; !reflect.DeepEqual(got, []float64{1, 1, 2, 2}) {
		t.Fatalf("expected b points, got %v", got)
	}
	if got := c.Layer[0].Points; !reflect.DeepEqual(got, []float64{1, 1, 3, 3}) {
		t.Fatalf("expected c points, got %v", got)
	}
}

func TestStrokesReplaceAbandonsDrawing(t *testing.T) {
	s := NewStrokes(Layer{}).Begin(DefaultBrush)
	loaded := Layer{{Points: []float64{9, 9}, Type: CompositeErase, Color: "#000", Width: 2}}
	s = s.Replace(loaded)
	if s.Drawing {
		t.Fatal("expected replace to stop drawing")
	}
	if !reflect.DeepEqual(s.Layer, loaded) {
		t.Fatalf("expected replaced layer, got %+v", s.Layer)
	}
}

func TestBrushNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Brush
		want Brush
	}{
		{"valid", Brush{Color: "navy", Width: 2, Type: CompositeErase}, Brush{Color: "navy", Width: 2, Type: CompositeErase}},
		{"zero width", Brush{Color: "navy", Width: 0, Type: CompositeInk}, Brush{Color: "navy", Width: DefaultBrush.Width, Type: CompositeInk}},
		{"negative width", Brush{Color: "navy", Width: -4}, Brush{Color: "navy", Width: DefaultBrush.Width, Type: CompositeInk}},
		{"nan width", Brush{Color: "navy", Width: math.NaN()}, Brush{Color: "navy", Width: DefaultBrush.Width, Type: CompositeInk}},
		{"blank color", Brush{Color: "  ", Width: 4}, Brush{Color: DefaultBrush.Color, Width: 4, Type: CompositeInk}},
		{"unknown type", Brush{Color: "red", Width: 4, Type: "xor"}, Brush{Color: "red", Width: 4, Type: CompositeInk}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestStrokesBeginNormalizesBrush(t *testing.T) {
	s := drawStroke(NewStrokes(Layer{}), Brush{Width: 0}, Pt(1, 1))
	if err := s.Layer.Validate(); err != nil {
		t.Fatalf("expected a storable stroke, got %v", err)
	}
}

func TestLayerValidate(t *testing.T) {
	ok := Layer{{Points: []float64{1, 2}, Color: "red", Width: 1}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected untyped stroke to count as ink, got %v", err)
	}
	bad := Layer{ok[0], {Points: []float64{}, Type: CompositeInk, Color: "red", Width: 0}}
	if err := bad.Validate(); !errors.Is(err, ErrBadWidth) {
		t.Fatalf("expected ErrBadWidth, got %v", err)
	}
}

func TestStrokesLongStrokeKeepsSnapshots(t *testing.T) {
	s := NewStrokes(Layer{}).Begin(DefaultBrush)
	var snaps []Strokes
	for i := 0; i < 500; i++ {
		s = s.Continue(Pt(float64(i), float64(i)))
		snaps = append(snaps, s)
	}
	for i, snap := range snaps {
		pts := snap.Layer[0].Points
		if len(pts) != 2*(i+1) || pts[2*i] != float64(i) {
			t.Fatalf("snapshot %d changed: len %d", i, len(pts))
		}
	}

	// Continuing an older snapshot must not show up in newer ones.
	branch := snaps[10].Continue(Pt(-1, -1))
	if snaps[11].Layer[0].Points[22] != 11 || branch.Layer[0].Points[22] != -1 {
		t.Fatal("expected the branch to get its own points")
	}
}

package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ScriptInk/internal/state"
	"ScriptInk/internal/store"
)

type fakeStore struct {
	load    func(ctx context.Context, pageID string) (store.Page, error)
	saveErr error
	saves   chan store.Page
}

func newFakeStore(layer state.Layer) *fakeStore {
	return &fakeStore{
		load: func(_ context.Context, id string) (store.Page, error) {
			return store.Page{ID: id, Layer: layer.Clone()}, nil
		},
		saves: make(chan store.Page, 16),
	}
}

func (f *fakeStore) Load(ctx context.Context, pageID string) (store.Page, error) {
	return f.load(ctx, pageID)
}

func (f *fakeStore) Save(_ context.Context, page store.Page) error {
	f.saves <- page
	return f.saveErr
}

func receive[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func startSession(t *testing.T, st store.Store, opts ...SessionOption) (*Session, chan string) {
	t.Helper()
	ready := make(chan struct{}, 1)
	notices := make(chan string, 4)
	opts = append([]SessionOption{
		WithNotify(func(msg string) { notices <- msg }),
		WithOnChange(func(s State) {
			if s.Ready {
				select {
				case ready <- struct{}{}:
				default:
				}
			}
		}),
	}, opts...)
	s := NewSession("page-1", st, opts...)
	t.Cleanup(s.Close)
	s.Start()
	receive(t, ready, "initial load")
	return s, notices
}

func drawLine(s *Session, pts ...state.Point) {
	s.Dispatch(PointerDown{})
	for _, p := range pts {
		s.Dispatch(PointerMove{Position: p, Surface: identity})
	}
	s.Dispatch(PointerUp{})
}

func TestSessionLoadsThenSaves(t *testing.T) {
	existing := state.Layer{{Points: []float64{5, 5}, Type: state.CompositeInk, Color: "blue", Width: 2}}
	fs := newFakeStore(existing)
	s, _ := startSession(t, fs)

	if s.Status() != StatusReady {
		t.Fatalf("expected ready, got %s", s.Status())
	}
	s.SetBrush(state.Brush{Color: "#ff0000", Width: 5})
	drawLine(s, state.Pt(0, 0), state.Pt(10, 10))

	page := receive(t, fs.saves, "save")
	if page.ID != "page-1" || page.Writer != s.Writer() || page.Seq != 1 {
		t.Fatalf("unexpected page header %+v", page)
	}
	if len(page.Layer) != 2 || page.Layer[1].Color != "#ff0000" || page.Layer[1].Width != 5 {
		t.Fatalf("unexpected saved layer %+v", page.Layer)
	}

	drawLine(s, state.Pt(1, 1))
	if next := receive(t, fs.saves, "second save"); next.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", next.Seq)
	}
}

func TestSessionIgnoresInputUntilLoaded(t *testing.T) {
	fs := newFakeStore(state.Layer{})
	gate := make(chan struct{})
	load := fs.load
	fs.load = func(ctx context.Context, id string) (store.Page, error) {
		<-gate
		return load(ctx, id)
	}
	ready := make(chan struct{}, 1)
	s := NewSession("page-1", fs, WithOnChange(func(st State) {
		if st.Ready {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	}))
	defer s.Close()
	s.Start()

	drawLine(s, state.Pt(1, 1), state.Pt(2, 2))
	if st := s.State(); st.Ready || len(st.Layer) != 0 {
		t.Fatalf("expected input ignored while loading, got %+v", st)
	}
	if s.Status() != StatusLoading {
		t.Fatalf("expected loading, got %s", s.Status())
	}
	select {
	case p := <-fs.saves:
		t.Fatalf("unexpected save %+v", p)
	default:
	}

	close(gate)
	receive(t, ready, "load")
	drawLine(s, state.Pt(1, 1))
	receive(t, fs.saves, "save after load")
}

func TestSessionLoadFailure(t *testing.T) {
	fs := newFakeStore(nil)
	fs.load = func(context.Context, string) (store.Page, error) {
		return store.Page{}, errors.New("boom")
	}
	notices := make(chan string, 1)
	s := NewSession("page-1", fs, WithNotify(func(msg string) { notices <- msg }))
	defer s.Close()
	s.Start()

	msg := receive(t, notices, "load notice")
	if !strings.Contains(msg, "page-1") || !strings.Contains(msg, "boom") {
		t.Fatalf("unexpected notice %q", msg)
	}
	if s.Status() != StatusFailed {
		t.Fatalf("expected failed, got %s", s.Status())
	}
	drawLine(s, state.Pt(1, 1))
	if st := s.State(); len(st.Layer) != 0 {
		t.Fatalf("expected no drawing after failed load, got %+v", st.Layer)
	}
}

func TestSessionSaveFailureKeepsLocalState(t *testing.T) {
	fs := newFakeStore(state.Layer{})
	fs.saveErr = errors.New("disk full")
	s, notices := startSession(t, fs)

	drawLine(s, state.Pt(1, 1), state.Pt(2, 2))
	receive(t, fs.saves, "save attempt")
	msg := receive(t, notices, "save notice")
	if !strings.Contains(msg, "disk full") {
		t.Fatalf("unexpected notice %q", msg)
	}
	if st := s.State(); len(st.Layer) != 1 {
		t.Fatalf("expected local stroke kept, got %+v", st.Layer)
	}
}

func TestSessionStaleSaveIsSilent(t *testing.T) {
	fs := newFakeStore(state.Layer{})
	fs.saveErr = store.ErrStale
	s, notices := startSession(t, fs)

	drawLine(s, state.Pt(1, 1))
	receive(t, fs.saves, "save attempt")
	select {
	case msg := <-notices:
		t.Fatalf("unexpected notice %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionHydrate(t *testing.T) {
	fs := newFakeStore(state.Layer{})
	s, _ := startSession(t, fs)
	remote := state.Layer{{Points: []float64{7, 7}, Type: state.CompositeInk, Color: "green", Width: 4}}

	s.Hydrate(store.Page{ID: "page-1", Layer: state.Layer{{Points: []float64{}, Type: state.CompositeInk, Color: "x", Width: 1}}, Writer: s.Writer(), Seq: 9})
	if len(s.State().Layer) != 0 {
		t.Fatal("expected own echo ignored")
	}
	s.Hydrate(store.Page{ID: "other", Layer: remote, Writer: "peer", Seq: 1})
	if len(s.State().Layer) != 0 {
		t.Fatal("expected other page ignored")
	}

	s.Hydrate(store.Page{ID: "page-1", Layer: remote, Writer: "peer", Seq: 1})
	if got := s.State().Layer; len(got) != 1 || got[0].Color != "green" {
		t.Fatalf("expected remote layer, got %+v", got)
	}

	drawLine(s, state.Pt(1, 1))
	receive(t, fs.saves, "local save")
	s.Hydrate(store.Page{ID: "page-1", Layer: remote, Writer: "peer", Seq: 1})
	if got := s.State().Layer; len(got) != 2 {
		t.Fatalf("expected repeated revision ignored, got %+v", got)
	}

	select {
	case p := <-fs.saves:
		t.Fatalf("hydrate must not save, got %+v", p)
	default:
	}
}

func TestSessionModeAndBrush(t *testing.T) {
	s, _ := startSession(t, newFakeStore(state.Layer{}))
	if s.Mode() != ModeDraw || s.Brush() != state.DefaultBrush {
		t.Fatalf("unexpected defaults %s %+v", s.Mode(), s.Brush())
	}
	st := s.SetMode(ModeView)
	if !st.Draggable || s.Mode() != ModeView {
		t.Fatalf("expected view mode, got %+v", st)
	}
}

func TestSessionRouterOptions(t *testing.T) {
	fs := newFakeStore(state.Layer{})
	s, _ := startSession(t, fs, WithRouter(WithMode(ModeView), WithWheelZoom(true)))
	st := s.Dispatch(Wheel{DY: -1})
	if !near(st.Viewport.Scale, state.WheelZoomRatio) {
		t.Fatalf("expected wheel zoom, got %v", st.Viewport.Scale)
	}
	s.SetMode(ModeDraw)
	drawLine(s, state.Pt(1, 1))
	receive(t, fs.saves, "save through rebuilt router")
}

func TestSessionCloseDropsSaves(t *testing.T) {
	fs := newFakeStore(state.Layer{})
	s, _ := startSession(t, fs)
	s.Close()
	s.Close()

	drawLine(s, state.Pt(1, 1))
	select {
	case p := <-fs.saves:
		t.Fatalf("unexpected save after close %+v", p)
	default:
	}
}

func TestClockSequence(t *testing.T) {
	a, b := NewClock(), NewClock()
	if a.Writer() == "" || a.Writer() == b.Writer() {
		t.Fatalf("expected distinct writer ids, got %q %q", a.Writer(), b.Writer())
	}
	for want := uint64(1); want <= 3; want++ {
		if got := a.Next(); got != want {
			t.Fatalf("expected seq %d, got %d", want, got)
		}
	}
}

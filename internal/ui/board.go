package ui

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"ScriptInk/internal/engine"
	"ScriptInk/internal/export"
	"ScriptInk/internal/state"
)

// BoardWidget shows a page image with its annotation layer and feeds mouse
// input to an engine session.
type BoardWidget struct {
	widget.BaseWidget

	session    *engine.Session
	background image.Image

	mu    sync.RWMutex
	state engine.State
}

var (
	_ fyne.Widget       = (*BoardWidget)(nil)
	_ fyne.Draggable    = (*BoardWidget)(nil)
	_ fyne.Tappable     = (*BoardWidget)(nil)
	_ fyne.Scrollable   = (*BoardWidget)(nil)
	_ desktop.Mouseable = (*BoardWidget)(nil)
	_ desktop.Hoverable = (*BoardWidget)(nil)
)

// NewBoardWidget returns a board over background, which may be nil.
func NewBoardWidget(background image.Image) *BoardWidget {
	b := &BoardWidget{
		background: background,
		state:      engine.State{Viewport: state.NewViewport()},
	}
	b.ExtendBaseWidget(b)
	return b
}

// Bind routes input to s.
func (b *BoardWidget) Bind(s *engine.Session) {
	b.session = s
	b.Update(s.State())
}

// Update stores the snapshot to draw and repaints. It must run on the fyne
// goroutine.
func (b *BoardWidget) Update(st engine.State) {
	b.mu.Lock()
	b.state = st
	b.mu.Unlock()
	b.Refresh()
}

// Snapshot returns the snapshot currently drawn.
func (b *BoardWidget) Snapshot() engine.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Background returns the page image, or nil.
func (b *BoardWidget) Background() image.Image { return b.background }

func (b *BoardWidget) dispatch(ev engine.Event) {
	if b.session != nil {
		b.session.Dispatch(ev)
	}
}

func (b *BoardWidget) surface() state.Surface {
	return b.Snapshot().Viewport.Surface()
}

func point(p fyne.Position) state.Point {
	return state.Pt(float64(p.X), float64(p.Y))
}

// MouseDown starts a stroke at the pressed point, so a click leaves a dot.
func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	s := b.surface()
	b.dispatch(engine.PointerDown{Position: point(e.Position), Surface: s})
	b.dispatch(engine.PointerMove{Position: point(e.Position), Surface: s})
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button == desktop.MouseButtonPrimary {
		b.dispatch(engine.PointerUp{})
	}
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent)    {}
func (b *BoardWidget) MouseMoved(*desktop.MouseEvent) {}

func (b *BoardWidget) MouseOut() {
	b.dispatch(engine.PointerLeave{})
}

// Dragged draws, erases or pans depending on the session mode.
func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	if b.session == nil {
		return
	}
	switch b.session.Mode() {
	case engine.ModeDraw:
		b.dispatch(engine.PointerMove{Position: point(e.Position), Surface: b.surface()})
	case engine.ModeErase:
		b.dispatch(engine.EraseAt{Position: point(e.Position), Surface: b.surface()})
	case engine.ModeView:
		t := b.Snapshot().Viewport.Translation
		b.dispatch(engine.Drag{Position: t.Add(state.Pt(float64(e.Dragged.DX), float64(e.Dragged.DY)))})
	}
}

func (b *BoardWidget) DragEnd() {
	b.dispatch(engine.PointerUp{})
}

// Tapped erases the stroke under the pointer in erase mode.
func (b *BoardWidget) Tapped(e *fyne.PointEvent) {
	b.dispatch(engine.EraseAt{Position: point(e.Position), Surface: b.surface()})
}

// Scrolled pans or zooms. Holding Control zooms precisely.
func (b *BoardWidget) Scrolled(e *fyne.ScrollEvent) {
	precise := false
	if app := fyne.CurrentApp(); app != nil {
		if d, ok := app.Driver().(desktop.Driver); ok {
			precise = d.CurrentKeyModifiers()&fyne.KeyModifierControl != 0
		}
	}
	// fyne reports a wheel turned away from the user as positive.
	b.dispatch(engine.Wheel{
		Cursor:  point(e.Position),
		DX:      -float64(e.Scrolled.DX),
		DY:      -float64(e.Scrolled.DY),
		Precise: precise,
	})
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &boardRenderer{board: b, paper: canvas.NewRectangle(color.White)}
	if b.background != nil {
		r.page = canvas.NewImageFromImage(b.background)
		r.page.FillMode = canvas.ImageFillStretch
		r.page.ScaleMode = canvas.ImageScaleSmooth
	}
	r.ink = canvas.NewRaster(r.draw)
	return r
}

type boardRenderer struct {
	board *BoardWidget
	paper *canvas.Rectangle
	page  *canvas.Image
	ink   *canvas.Raster
}

// draw renders the ink at device resolution.
func (r *boardRenderer) draw(w, h int) image.Image {
	st := r.board.Snapshot()
	vp := st.Viewport
	if size := r.board.Size(); size.Width > 0 {
		k := float64(w) / float64(size.Width)
		vp.Scale *= k
		vp.Translation = vp.Translation.Mul(k)
	}
	return export.RenderLayer(st.Layer, w, h, vp)
}

func (r *boardRenderer) Layout(size fyne.Size) {
	r.paper.Resize(size)
	r.ink.Resize(size)
	r.layoutPage()
}

func (r *boardRenderer) layoutPage() {
	if r.page == nil {
		return
	}
	vp := r.board.Snapshot().Viewport
	b := r.board.background.Bounds()
	r.page.Move(fyne.NewPos(float32(vp.Translation.X), float32(vp.Translation.Y)))
	r.page.Resize(fyne.NewSize(float32(float64(b.Dx())*vp.Scale), float32(float64(b.Dy())*vp.Scale)))
}

func (r *boardRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *boardRenderer) Objects() []fyne.CanvasObject {
	if r.page == nil {
		return []fyne.CanvasObject{r.paper, r.ink}
	}
	return []fyne.CanvasObject{r.paper, r.page, r.ink}
}

func (r *boardRenderer) Refresh() {
	r.layoutPage()
	if r.page != nil {
		r.page.Refresh()
	}
	r.ink.Refresh()
}

func (r *boardRenderer) Destroy() {}

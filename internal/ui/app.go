// Package ui is the fyne desktop front end of an annotation session.
package ui

import (
	"fmt"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"ScriptInk/internal/engine"
	"ScriptInk/internal/export"
	"ScriptInk/internal/state"
)

// App is the window showing one annotated page.
type App struct {
	fyne    fyne.App
	window  fyne.Window
	board   *BoardWidget
	status  *widget.Label
	session *engine.Session
	notice  string
}

// NewApp creates the fyne application. Create it before the session so the
// session can post to it.
func NewApp(title string) *App {
	a := &App{
		fyne:   app.New(),
		status: widget.NewLabel("Loading page..."),
	}
	a.window = a.fyne.NewWindow(title)
	a.window.Resize(fyne.NewSize(1024, 768))
	return a
}

// Post runs fn on the fyne goroutine.
func (a *App) Post(fn func()) { fyne.Do(fn) }

// Notify shows a user-facing notice in the status bar.
func (a *App) Notify(msg string) {
	a.notice = msg
	a.refreshStatus()
}

// OnChange repaints the board for a new snapshot.
func (a *App) OnChange(st engine.State) {
	if a.board != nil {
		a.board.Update(st)
	}
	a.refreshStatus()
}

func (a *App) refreshStatus() {
	if a.session == nil {
		return
	}
	text := ""
	switch a.session.Status() {
	case engine.StatusLoading:
		text = "Loading page " + a.session.PageID() + "..."
	case engine.StatusFailed:
		text = "Page " + a.session.PageID() + " is read-only"
	case engine.StatusReady:
		text = fmt.Sprintf("Page %s · %s mode · %d strokes", a.session.PageID(), a.session.Mode(), len(a.session.State().Layer))
	}
	if a.notice != "" {
		text += " | " + a.notice
	}
	a.status.SetText(text)
}

// Run shows the window for s until it is closed and starts loading the page
// once the app is up. link, when set, is the share link peers use to join.
func (a *App) Run(s *engine.Session, board *BoardWidget, link string) {
	a.session = s
	a.board = board
	board.Bind(s)

	bottom := []fyne.CanvasObject{a.status}
	if link != "" {
		entry := widget.NewEntry()
		entry.SetText(link)
		bottom = append(bottom, container.NewBorder(nil, nil, widget.NewLabel("Share:"), nil, entry))
	}
	content := container.NewBorder(newToolbar(a), container.NewVBox(bottom...), nil, nil, board)
	a.window.SetContent(content)
	a.window.SetOnClosed(s.Close)
	a.fyne.Lifecycle().SetOnStarted(s.Start)
	a.refreshStatus()
	a.window.ShowAndRun()
}

func (a *App) confirmClear() {
	dialog.ShowConfirm("Clear page", "Remove every stroke on this page?", func(ok bool) {
		if ok {
			a.session.Dispatch(engine.Clear{})
		}
	}, a.window)
}

func (a *App) exportPDF() {
	dialog.ShowFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil || w == nil {
			return
		}
		defer w.Close()
		layer := a.session.State().Layer
		if err := export.WritePDF(w, layer, a.board.Background()); err != nil {
			log.Printf("[UI] PDF export failed: %v", err)
			a.Notify(fmt.Sprintf("Export failed: %v", err))
			return
		}
		a.Notify("Exported " + w.URI().Name())
	}, a.window)
}

func (a *App) exportPNG() {
	dialog.ShowFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil || w == nil {
			return
		}
		defer w.Close()
		layer := a.session.State().Layer
		width, height := export.ContentSize(layer, 24)
		if bg := a.board.Background(); bg != nil {
			width, height = bg.Bounds().Dx(), bg.Bounds().Dy()
		}
		if err := export.WritePNG(w, layer, width, height, state.NewViewport()); err != nil {
			log.Printf("[UI] PNG export failed: %v", err)
			a.Notify(fmt.Sprintf("Export failed: %v", err))
			return
		}
		a.Notify("Exported " + w.URI().Name())
	}, a.window)
}

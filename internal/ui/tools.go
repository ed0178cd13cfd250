package ui

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"ScriptInk/internal/engine"
	"ScriptInk/internal/export"
	"ScriptInk/internal/state"
)

const eraserWidth = 20.0

var palette = []string{"#ff0000", "#000000", "#0057ff", "#00a040", "#ffd400"}

type colorSwatch struct {
	widget.BaseWidget
	Color    color.Color
	OnTapped func()
}

func newColorSwatch(c color.Color, tapped func()) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(28, 28))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(*fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped()
	}
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

var modeNames = map[string]engine.Mode{
	"Draw":  engine.ModeDraw,
	"Erase": engine.ModeErase,
	"View":  engine.ModeView,
}

// newToolbar builds the mode selector, brush controls and page actions.
func newToolbar(a *App) fyne.CanvasObject {
	s := a.session
	pen := s.Brush()

	modes := widget.NewRadioGroup([]string{"Draw", "Erase", "View"}, func(name string) {
		if m, ok := modeNames[name]; ok {
			s.SetMode(m)
		}
	})
	modes.Horizontal = true
	modes.Required = true
	for name, m := range modeNames {
		if m == s.Mode() {
			modes.SetSelected(name)
		}
	}

	width := widget.NewSlider(1, 50)
	width.SetValue(pen.Width)
	width.OnChanged = func(v float64) {
		b := s.Brush()
		b.Width = v
		if b.Type == state.CompositeInk {
			pen.Width = v
		}
		s.SetBrush(b)
	}

	brushes := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() {
			s.SetBrush(pen)
			width.SetValue(pen.Width)
		}),
		widget.NewToolbarAction(theme.ContentRemoveIcon(), func() {
			s.SetBrush(state.Brush{Color: pen.Color, Width: eraserWidth, Type: state.CompositeErase})
			width.SetValue(eraserWidth)
		}),
	)

	swatches := container.NewHBox()
	for _, spec := range palette {
		c, _ := export.ParseColor(spec)
		swatches.Add(newColorSwatch(c, func() {
			pen.Color = hexColor(c)
			b := s.Brush()
			b.Color = pen.Color
			s.SetBrush(b)
		}))
	}

	actions := widget.NewToolbar(
		widget.NewToolbarAction(theme.ZoomFitIcon(), func() { s.Dispatch(engine.ResetView{}) }),
		widget.NewToolbarAction(theme.ContentClearIcon(), a.confirmClear),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), a.exportPDF),
		widget.NewToolbarAction(theme.FileImageIcon(), a.exportPNG),
	)

	return container.NewHBox(
		modes,
		widget.NewSeparator(),
		brushes,
		swatches,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), width),
		layout.NewSpacer(),
		actions,
	)
}

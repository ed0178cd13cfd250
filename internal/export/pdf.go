package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"ScriptInk/internal/state"
)

// pdfMargin pads a page without background around the ink, in points.
const pdfMargin = 24

// ExportPDF writes layer to a one-page PDF at path. The page takes the size
// of background when one is given, otherwise it is fitted to the ink.
// Content units map 1:1 to PDF points.
func ExportPDF(path string, layer state.Layer, background image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	if err := WritePDF(f, layer, background); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}

// WritePDF is ExportPDF to a writer.
func WritePDF(out io.Writer, layer state.Layer, background image.Image) error {
	var w, h float64
	if background != nil {
		b := background.Bounds()
		w, h = float64(b.Dx()), float64(b.Dy())
	} else {
		cw, ch := ContentSize(layer, pdfMargin)
		w, h = float64(cw), float64(ch)
	}
	if w <= 0 || h <= 0 {
		w, h = 595.28, 841.89
	}

	p := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: gofpdf.SizeType{Wd: w, Ht: h}})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()

	if background != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, background); err != nil {
			return fmt.Errorf("export pdf: encode background: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		p.RegisterImageOptionsReader("background", opts, &buf)
		p.ImageOptions("background", 0, 0, w, h, false, opts, 0, "")
	}

	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")
	for _, s := range layer {
		drawPDFStroke(p, s)
	}
	if err := p.Output(out); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}

// drawPDFStroke paints s. PDF has no destination-out, so erase strokes are
// painted in white.
func drawPDFStroke(p *gofpdf.Fpdf, s state.Stroke) {
	n := s.Len()
	if n == 0 {
		return
	}
	r, g, b, a := 255, 255, 255, 1.0
	if s.Type != state.CompositeErase {
		c, err := ParseColor(s.Color)
		if err != nil {
			c.A = 255
		}
		r, g, b, a = int(c.R), int(c.G), int(c.B), float64(c.A)/255
	}
	p.SetDrawColor(r, g, b)
	p.SetFillColor(r, g, b)
	p.SetAlpha(a, "Normal")
	defer p.SetAlpha(1, "Normal")

	if n == 1 {
		pt := s.At(0)
		p.Circle(pt.X, pt.Y, s.Width/2, "F")
		return
	}
	p.SetLineWidth(s.Width)
	pt := s.At(0)
	p.MoveTo(pt.X, pt.Y)
	for i := 1; i < n; i++ {
		pt = s.At(i)
		p.LineTo(pt.X, pt.Y)
	}
	p.DrawPath("D")
}

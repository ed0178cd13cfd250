package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"

	"github.com/gogpu/gg"

	"ScriptInk/internal/state"
)

// RenderLayer rasterises layer as seen through vp onto a transparent w×h
// image. Strokes are painted in order; erase strokes remove the ink under
// them instead of adding paint.
func RenderLayer(layer state.Layer, w, h int, vp state.Viewport) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	if w <= 0 || h <= 0 || len(layer) == 0 {
		return dst
	}
	dc := gg.NewContext(w, h)
	defer dc.Close()

	// Runs of strokes with the same composite mode are painted together:
	// source-over is associative, and erasing with the union of masks is the
	// same as erasing with each mask in turn.
	for start := 0; start < len(layer); {
		mode := layer[start].Type
		end := start
		dc.Clear()
		for ; end < len(layer) && layer[end].Type == mode; end++ {
			if err := paintStroke(dc, layer[end], vp); err != nil {
				log.Printf("[RENDER] Skipped stroke %d: %v", end, err)
			}
		}
		src := toRGBA(dc.Image())
		if mode == state.CompositeErase {
			eraseWith(dst, src)
		} else {
			draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Over)
		}
		start = end
	}
	return dst
}

func paintStroke(dc *gg.Context, s state.Stroke, vp state.Viewport) error {
	n := s.Len()
	if n == 0 {
		return nil
	}
	col := color.NRGBA{A: 255}
	if s.Type != state.CompositeErase {
		c, err := ParseColor(s.Color)
		if err != nil {
			return err
		}
		col = c
	}
	width := s.Width * vp.Scale
	dc.SetColor(col)
	if n == 1 {
		p := vp.ToScreen(s.At(0))
		dc.DrawCircle(p.X, p.Y, width/2)
		return dc.Fill()
	}
	dc.SetLineWidth(width)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	p := vp.ToScreen(s.At(0))
	dc.MoveTo(p.X, p.Y)
	for i := 1; i < n; i++ {
		p = vp.ToScreen(s.At(i))
		dc.LineTo(p.X, p.Y)
	}
	return dc.Stroke()
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}

// eraseWith scales every premultiplied channel of dst by one minus the
// coverage of mask.
func eraseWith(dst, mask *image.RGBA) {
	b := dst.Bounds().Intersect(mask.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		d := dst.Pix[dst.PixOffset(b.Min.X, y):]
		m := mask.Pix[mask.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx()*4; x += 4 {
			a := uint32(m[x+3])
			if a == 0 {
				continue
			}
			keep := 255 - a
			for c := 0; c < 4; c++ {
				d[x+c] = uint8((uint32(d[x+c])*keep + 127) / 255)
			}
		}
	}
}

// WritePNG renders layer at w×h through vp and encodes it as PNG.
func WritePNG(out io.Writer, layer state.Layer, w, h int, vp state.Viewport) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("write png: bad size %dx%d", w, h)
	}
	if err := png.Encode(out, RenderLayer(layer, w, h, vp)); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// ContentSize returns the smallest canvas that holds every stroke of layer
// at scale 1, padded by margin.
func ContentSize(layer state.Layer, margin float64) (int, int) {
	var maxX, maxY float64
	for _, s := range layer {
		r, ok := s.Bounds(s.Width / 2)
		if !ok {
			continue
		}
		maxX = max(maxX, r.X+r.Width)
		maxY = max(maxY, r.Y+r.Height)
	}
	return int(maxX + margin + 0.5), int(maxY + margin + 0.5)
}

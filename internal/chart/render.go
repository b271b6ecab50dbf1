package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/yashward001/finchat/internal/obs"
)

// Renderer turns a figure into raster bytes. How the pixels are drawn is a
// collaborator concern; the observation protocol only carries the result.
type Renderer interface {
	Render(fig *obs.FigurePayload) ([]byte, error)
}

// LineRenderer is a minimal built-in Renderer: it plots the line series of a
// figure (and the close values of candlestick series) as polylines on a plain
// background and encodes the result as PNG. It exists so the pipeline works
// end to end without an external charting service.
type LineRenderer struct{}

var seriesColors = map[string]color.RGBA{
	"blue":   {B: 0xcc, A: 0xff},
	"red":    {R: 0xcc, A: 0xff},
	"orange": {R: 0xff, G: 0x7f, A: 0xff},
	"green":  {G: 0x99, A: 0xff},
}

func (LineRenderer) Render(fig *obs.FigurePayload) ([]byte, error) {
	w, h := fig.Width, fig.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff // white canvas
	}

	plotted := 0
	for _, s := range fig.Series {
		ys := s.Y
		if s.Type == "candlestick" {
			ys = s.Close
		}
		if len(ys) < 2 {
			continue
		}
		c, ok := seriesColors[s.Color]
		if !ok {
			c = color.RGBA{A: 0xff} // black
		}
		drawPolyline(img, ys, c)
		plotted++
	}
	if plotted == 0 {
		return nil, fmt.Errorf("figure has no plottable series")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart image: %w", err)
	}
	return buf.Bytes(), nil
}

// drawPolyline scales values into the image rectangle and connects successive
// points with straight segments.
func drawPolyline(img *image.RGBA, values []float64, c color.RGBA) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	const margin = 10

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	if span == 0 {
		span = 1
	}

	toPoint := func(i int) (int, int) {
		x := margin + i*(w-2*margin)/(len(values)-1)
		y := h - margin - int(float64(h-2*margin)*(values[i]-min)/span)
		return x, y
	}

	x0, y0 := toPoint(0)
	for i := 1; i < len(values); i++ {
		x1, y1 := toPoint(i)
		drawSegment(img, x0, y0, x1, y1, c)
		x0, y0 = x1, y1
	}
}

func drawSegment(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.SetRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Package chartimg renders time-series line charts as PNG images.
package chartimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/lox/iotdash/internal/models"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 320

	marginLeft   = 64
	marginRight  = 20
	marginTop    = 40
	marginBottom = 36

	// Markers are drawn only while points are sparse enough to read.
	maxMarkers = 200
)

// SeriesColors is the colour cycle for series.
var SeriesColors = []string{"#4fc3f7", "#81c784", "#ffb74d", "#f48fb1"}

var (
	background = color.RGBA{255, 255, 255, 255}
	axisColor  = color.RGBA{90, 90, 90, 255}
	gridColor  = color.RGBA{225, 225, 225, 255}
	textColor  = color.RGBA{40, 40, 40, 255}
	mutedColor = color.RGBA{130, 130, 130, 255}
)

// Point is one sample. Break starts a new line segment, used when samples
// were missing between this point and the previous one.
type Point struct {
	Time  time.Time
	Value float64
	Break bool
}

type Series struct {
	Name   string
	Color  color.RGBA
	Points []Point
}

type Chart struct {
	Title    string
	Width    int
	Height   int
	Location *time.Location
	Series   []Series
}

// FromRecords builds one series per field. Records that did not sample a
// field break that field's line instead of plotting a zero.
func FromRecords(title string, records []models.SensorRecord, fields []string, labels map[string]string) Chart {
	c := Chart{Title: title}
	for i, f := range fields {
		name := f
		if l, ok := labels[f]; ok && l != "" {
			name = l
		}
		s := Series{Name: name, Color: MustParseHex(SeriesColors[i%len(SeriesColors)])}
		gap := false
		for _, rec := range records {
			v, ok := rec.Value(f)
			if !ok || math.IsNaN(v) {
				gap = len(s.Points) > 0
				continue
			}
			s.Points = append(s.Points, Point{Time: rec.Time, Value: v, Break: gap})
			gap = false
		}
		c.Series = append(c.Series, s)
	}
	return c
}

// Render draws the chart and encodes it as PNG.
func Render(c Chart) ([]byte, error) {
	w, h := c.Width, c.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	if w < marginLeft+marginRight+10 || h < marginTop+marginBottom+10 {
		return nil, fmt.Errorf("chart size %dx%d too small", w, h)
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Bounds(), background)
	drawText(img, c.Title, 12, 20, textColor)
	drawLegend(img, c.Series, w)

	plot := image.Rect(marginLeft, marginTop, w-marginRight, h-marginBottom)
	drawLine(img, plot.Min.X, plot.Max.Y, plot.Max.X, plot.Max.Y, axisColor)
	drawLine(img, plot.Min.X, plot.Min.Y, plot.Min.X, plot.Max.Y, axisColor)

	ext, ok := extents(c.Series)
	if !ok {
		drawText(img, "No data", plot.Min.X+plot.Dx()/2-24, plot.Min.Y+plot.Dy()/2, mutedColor)
		return encode(img)
	}

	// Horizontal grid with value labels.
	const gridLines = 4
	for i := 0; i <= gridLines; i++ {
		v := ext.vmin + (ext.vmax-ext.vmin)*float64(i)/gridLines
		y := ext.y(v, plot)
		if i > 0 {
			drawLine(img, plot.Min.X+1, y, plot.Max.X, y, gridColor)
		}
		label := formatValue(v)
		drawText(img, label, plot.Min.X-8-textWidth(label), y+4, mutedColor)
	}

	first := ext.tmin.In(loc).Format("Jan 2 15:04")
	last := ext.tmax.In(loc).Format("Jan 2 15:04")
	drawText(img, first, plot.Min.X, plot.Max.Y+18, mutedColor)
	drawText(img, last, plot.Max.X-textWidth(last), plot.Max.Y+18, mutedColor)

	for _, s := range c.Series {
		markers := len(s.Points) <= maxMarkers
		var px, py int
		for i, p := range s.Points {
			x, y := ext.x(p.Time, plot), ext.y(p.Value, plot)
			if i > 0 && !p.Break {
				drawThickLine(img, px, py, x, y, s.Color)
			}
			if markers {
				fill(img, image.Rect(x-2, y-2, x+3, y+3), s.Color)
			}
			px, py = x, y
		}
	}

	return encode(img)
}

type extent struct {
	tmin, tmax time.Time
	vmin, vmax float64
}

func extents(series []Series) (extent, bool) {
	var e extent
	found := false
	for _, s := range series {
		for _, p := range s.Points {
			if !found {
				e = extent{tmin: p.Time, tmax: p.Time, vmin: p.Value, vmax: p.Value}
				found = true
				continue
			}
			if p.Time.Before(e.tmin) {
				e.tmin = p.Time
			}
			if p.Time.After(e.tmax) {
				e.tmax = p.Time
			}
			e.vmin = math.Min(e.vmin, p.Value)
			e.vmax = math.Max(e.vmax, p.Value)
		}
	}
	if !found {
		return e, false
	}
	if e.vmax == e.vmin {
		e.vmin--
		e.vmax++
	} else {
		pad := (e.vmax - e.vmin) * 0.05
		e.vmin -= pad
		e.vmax += pad
	}
	return e, true
}

func (e extent) x(t time.Time, plot image.Rectangle) int {
	span := e.tmax.Sub(e.tmin)
	if span <= 0 {
		return plot.Min.X + plot.Dx()/2
	}
	frac := float64(t.Sub(e.tmin)) / float64(span)
	return plot.Min.X + int(math.Round(frac*float64(plot.Dx()-1)))
}

func (e extent) y(v float64, plot image.Rectangle) int {
	frac := (v - e.vmin) / (e.vmax - e.vmin)
	return plot.Max.Y - int(math.Round(frac*float64(plot.Dy()-1)))
}

func drawLegend(img *image.RGBA, series []Series, width int) {
	x := width - marginRight
	for i := len(series) - 1; i >= 0; i-- {
		s := series[i]
		x -= textWidth(s.Name)
		drawText(img, s.Name, x, 20, textColor)
		x -= 14
		fill(img, image.Rect(x, 11, x+10, 21), s.Color)
		x -= 12
	}
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func textWidth(text string) int {
	return font.MeasureString(basicfont.Face7x13, text).Round()
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawLine is Bresenham's line algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	bounds := img.Bounds()
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func drawThickLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	drawLine(img, x0, y0, x1, y1, c)
	drawLine(img, x0, y0+1, x1, y1+1, c)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ParseHex parses a #rrggbb colour.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, nil
}

// MustParseHex is ParseHex for compile-time constants.
func MustParseHex(s string) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Package chart lays out and renders the spending-by-category pie chart.
//
// The layout follows the classic pie/arc conventions: angles start at twelve
// o'clock and run clockwise, wedges are placed in descending value order while
// the slice list keeps the input order, and non-positive values produce
// zero-width wedges so every category still gets exactly one slice.
package chart

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"

	"expenses/internal/core"
)

const (
	DefaultWidth  = 300
	DefaultHeight = 300
)

// Set3 is the qualitative palette assigned to categories in order.
var Set3 = []string{
	"#8dd3c7", "#ffffb3", "#bebada", "#fb8072", "#80b1d3", "#fdb462",
	"#b3de69", "#fccde5", "#d9d9d9", "#bc80bd", "#ccebc5", "#ffed6f",
}

type Slice struct {
	Label      string
	Value      float64
	Color      string
	StartAngle float64
	EndAngle   float64
}

// Pie is a laid-out chart, centered on (Width/2, Height/2).
type Pie struct {
	Width  int
	Height int
	Radius float64
	Slices []Slice
}

// Layout computes one wedge per category total.
func Layout(totals []core.CategoryAmount, width, height int) Pie {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	p := Pie{
		Width:  width,
		Height: height,
		Radius: math.Min(float64(width), float64(height)) / 2,
		Slices: make([]Slice, len(totals)),
	}

	var sum float64
	for i, t := range totals {
		v, _ := t.Amount.Float64()
		p.Slices[i] = Slice{Label: t.Name, Value: v, Color: Set3[i%len(Set3)]}
		if v > 0 {
			sum += v
		}
	}

	order := make([]int, len(totals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.Slices[order[a]].Value > p.Slices[order[b]].Value
	})

	k := 0.0
	if sum > 0 {
		k = 2 * math.Pi / sum
	}
	angle := 0.0
	for _, i := range order {
		s := &p.Slices[i]
		s.StartAngle = angle
		if s.Value > 0 {
			angle += s.Value * k
		}
		s.EndAngle = angle
	}
	return p
}

// Centroid returns the label anchor of slice i relative to the chart center.
func (p Pie) Centroid(i int) (x, y float64) {
	s := p.Slices[i]
	r := p.Radius / 2
	mid := (s.StartAngle + s.EndAngle) / 2
	return r * math.Sin(mid), -r * math.Cos(mid)
}

// Path returns the SVG path data of slice i relative to the chart center.
func (p Pie) Path(i int) string {
	s := p.Slices[i]
	r := p.Radius
	da := s.EndAngle - s.StartAngle
	switch {
	case da <= 1e-9:
		return "M0,0Z"
	case da >= 2*math.Pi-1e-9:
		// A full circle needs two half arcs.
		return fmt.Sprintf("M0,%sA%s,%s,0,1,1,0,%sA%s,%s,0,1,1,0,%sZ",
			num(-r), num(r), num(r), num(r), num(r), num(r), num(-r))
	}
	x0, y0 := r*math.Sin(s.StartAngle), -r*math.Cos(s.StartAngle)
	x1, y1 := r*math.Sin(s.EndAngle), -r*math.Cos(s.EndAngle)
	large := 0
	if da > math.Pi {
		large = 1
	}
	return fmt.Sprintf("M%s,%sA%s,%s,0,%d,1,%s,%sL0,0Z",
		num(x0), num(y0), num(r), num(r), large, num(x1), num(y1))
}

// Render writes a complete standalone SVG document. Each call starts from an
// empty canvas.
func (p Pie) Render(w io.Writer) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img" aria-label="Spending by category">`,
		p.Width, p.Height, p.Width, p.Height)
	fmt.Fprintf(&b, `<g transform="translate(%s,%s)">`, num(float64(p.Width)/2), num(float64(p.Height)/2))
	for i, s := range p.Slices {
		fmt.Fprintf(&b, `<path d="%s" fill="%s" stroke="#fff" stroke-width="2px"><title>`, p.Path(i), s.Color)
		escape(&b, s.Label)
		b.WriteString(`</title></path>`)
	}
	for i, s := range p.Slices {
		x, y := p.Centroid(i)
		fmt.Fprintf(&b, `<text transform="translate(%s,%s)" style="text-anchor: middle; font-size: 12px;">`, num(x), num(y))
		escape(&b, s.Label)
		b.WriteString(`</text>`)
	}
	b.WriteString(`</g></svg>`)
	_, err := w.Write(b.Bytes())
	return err
}

// SVG renders into a string.
func (p Pie) SVG() string {
	var b bytes.Buffer
	_ = p.Render(&b)
	return b.String()
}

func escape(b *bytes.Buffer, s string) {
	_ = xml.EscapeText(b, []byte(s))
}

// num prints coordinates with at most three decimals.
func num(f float64) string {
	f = math.Round(f*1000) / 1000
	if f == 0 {
		f = 0 // normalizes -0
	}
	return fmt.Sprintf("%g", f)
}

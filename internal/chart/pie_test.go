package chart

import (
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
)

func totals(pairs ...string) []core.CategoryAmount {
	var out []core.CategoryAmount
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, core.CategoryAmount{Name: pairs[i], Amount: decimal.RequireFromString(pairs[i+1])})
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLayoutWedgePerCategory(t *testing.T) {
	p := Layout(totals("Food", "50", "Travel", "150", "Misc", "0", "Refund", "-10"), 0, 0)
	if p.Width != DefaultWidth || p.Height != DefaultHeight || p.Radius != 150 {
		t.Fatalf("unexpected canvas %dx%d r=%v", p.Width, p.Height, p.Radius)
	}
	if len(p.Slices) != 4 {
		t.Fatalf("expected 4 wedges, got %d", len(p.Slices))
	}

	// Largest value is laid out first, starting at twelve o'clock.
	travel, food := p.Slices[1], p.Slices[0]
	if !approx(travel.StartAngle, 0) || !approx(travel.EndAngle, 1.5*math.Pi) {
		t.Fatalf("travel angles %v..%v", travel.StartAngle, travel.EndAngle)
	}
	if !approx(food.StartAngle, 1.5*math.Pi) || !approx(food.EndAngle, 2*math.Pi) {
		t.Fatalf("food angles %v..%v", food.StartAngle, food.EndAngle)
	}
	for _, i := range []int{2, 3} {
		if s := p.Slices[i]; s.EndAngle != s.StartAngle {
			t.Fatalf("non-positive wedge %q should be empty", s.Label)
		}
	}

	// Labels keep input order and palette order.
	if p.Slices[0].Label != "Food" || p.Slices[0].Color != Set3[0] || p.Slices[1].Color != Set3[1] {
		t.Fatalf("unexpected labels/colors %+v", p.Slices)
	}
}

func TestPaletteCycles(t *testing.T) {
	var pairs []string
	for i := 0; i < len(Set3)+2; i++ {
		pairs = append(pairs, string(rune('A'+i)), "1")
	}
	p := Layout(totals(pairs...), 300, 300)
	if p.Slices[len(Set3)].Color != Set3[0] || p.Slices[len(Set3)+1].Color != Set3[1] {
		t.Fatalf("palette should cycle")
	}
}

func TestAllZeroValues(t *testing.T) {
	p := Layout(totals("A", "0", "B", "0"), 300, 300)
	for _, s := range p.Slices {
		if s.StartAngle != 0 || s.EndAngle != 0 {
			t.Fatalf("expected empty wedges, got %+v", s)
		}
	}
	if got := p.Path(0); got != "M0,0Z" {
		t.Fatalf("empty wedge path=%q", got)
	}
}

func TestPathsAndCentroid(t *testing.T) {
	p := Layout(totals("Half", "1", "Other", "1"), 300, 300)
	if got := p.Path(0); got != "M0,-150A150,150,0,0,1,0,150L0,0Z" {
		t.Fatalf("half wedge path=%q", got)
	}
	x, y := p.Centroid(0)
	if !approx(x, 75) || math.Abs(y) > 1e-9 {
		t.Fatalf("centroid=(%v,%v) want (75,0)", x, y)
	}

	full := Layout(totals("Only", "10"), 300, 300)
	if got := full.Path(0); !strings.HasPrefix(got, "M0,-150A150,150,0,1,1,0,150A") {
		t.Fatalf("full circle path=%q", got)
	}
}

func TestRenderIsFreshAndEscaped(t *testing.T) {
	p := Layout(totals("Food & Drinks", "10", "<Travel>", "5"), 300, 300)
	svg := p.SVG()
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("not a standalone svg: %q", svg)
	}
	if strings.Count(svg, "<path ") != 2 || strings.Count(svg, "<text ") != 2 {
		t.Fatalf("expected two wedges and two labels: %s", svg)
	}
	if !strings.Contains(svg, "Food &amp; Drinks") || !strings.Contains(svg, "&lt;Travel&gt;") {
		t.Fatalf("labels not escaped: %s", svg)
	}
	if !strings.Contains(svg, `translate(150,150)`) {
		t.Fatalf("missing centering transform: %s", svg)
	}
	if svg != p.SVG() {
		t.Fatalf("render must be deterministic")
	}

	empty := Layout(nil, 300, 300).SVG()
	if strings.Contains(empty, "<path") {
		t.Fatalf("empty chart should have no wedges: %s", empty)
	}
}

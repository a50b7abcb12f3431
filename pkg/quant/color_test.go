package quant

import (
	"image/color"
	"math"
	"testing"
)

// TestColorRoundTrip tests conversion to premultiplied floats and back
func TestColorRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   color.NRGBA
		want color.NRGBA
	}{
		{"opaque", color.NRGBA{10, 200, 30, 255}, color.NRGBA{10, 200, 30, 255}},
		{"translucent", color.NRGBA{200, 100, 50, 128}, color.NRGBA{200, 100, 50, 128}},
		{"faint", color.NRGBA{255, 255, 255, 1}, color.NRGBA{255, 255, 255, 1}},
		{"transparent collapses", color.NRGBA{90, 80, 70, 0}, color.NRGBA{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ColorFromNRGBA(tt.in.R, tt.in.G, tt.in.B, tt.in.A).NRGBA()
			if got != tt.want {
				t.Errorf("round trip of %v = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	black := color.NRGBA{0, 0, 0, 255}
	white := color.NRGBA{255, 255, 255, 255}
	transparent := color.NRGBA{}

	if d := Distance(black, black); d != 0 {
		t.Errorf("Distance(black, black) = %v, want 0", d)
	}
	if d1, d2 := Distance(black, white), Distance(white, black); d1 != d2 {
		t.Errorf("Distance not symmetric: %v != %v", d1, d2)
	}
	if d := Distance(white, transparent); math.Abs(d-MaxDistance) > 1e-12 {
		t.Errorf("Distance(white, transparent) = %v, want %v", d, MaxDistance)
	}
	// Alpha weighs more than any color channel.
	halfAlpha := Distance(color.NRGBA{0, 0, 0, 255}, color.NRGBA{0, 0, 0, 127})
	halfRed := Distance(color.NRGBA{0, 0, 0, 255}, color.NRGBA{127, 0, 0, 255})
	if halfAlpha <= halfRed {
		t.Errorf("alpha distance %v should exceed red distance %v", halfAlpha, halfRed)
	}
	// Fully transparent colors are all the same.
	if d := Distance(color.NRGBA{255, 0, 0, 0}, color.NRGBA{0, 0, 255, 0}); d != 0 {
		t.Errorf("Distance between transparent colors = %v, want 0", d)
	}
}

// TestAccumulatorExact tests that identical members keep their exact color
func TestAccumulatorExact(t *testing.T) {
	c := ColorFromNRGBA(13, 77, 201, 99)
	var acc accumulator
	for i := 0; i < 7; i++ {
		acc.add(c, 0.3+float64(i))
	}
	if got := acc.mean(1); got != c {
		t.Errorf("mean = %+v, want exactly %+v", got, c)
	}

	var mixed accumulator
	mixed.add(Color{A: 1, R: 1}, 1)
	mixed.add(Color{A: 1, B: 1}, 3)
	want := Color{A: 1, R: 0.25, B: 0.75}
	if got := mixed.mean(1); got != want {
		t.Errorf("mean = %+v, want %+v", got, want)
	}
}

// TestAccumulatorMinOpaque tests snapping of nearly opaque centroids
func TestAccumulatorMinOpaque(t *testing.T) {
	var acc accumulator
	acc.add(ColorFromNRGBA(255, 0, 0, 255), 3)
	acc.add(ColorFromNRGBA(255, 0, 0, 230), 1)

	if got := acc.mean(1).A; got >= 1 {
		t.Errorf("without minOpaque alpha = %v, want below 1", got)
	}
	got := acc.mean(ieMinOpaque)
	if got.A != 1 {
		t.Errorf("with minOpaque alpha = %v, want 1", got.A)
	}
	if n := got.NRGBA(); n != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("snapped color = %v, want opaque red", n)
	}
}

func TestClampPremultiplied(t *testing.T) {
	got := Color{A: 0.5, R: 0.9, G: -0.2, B: 0.25}.clampPremultiplied()
	want := Color{A: 0.5, R: 0.5, G: 0, B: 0.25}
	if got != want {
		t.Errorf("clampPremultiplied = %+v, want %+v", got, want)
	}
}

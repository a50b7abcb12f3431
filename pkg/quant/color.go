// Package quant reduces an RGBA raster to an indexed image with at most 256
// colors. It builds a weighted color histogram, splits it with a variance
// based median cut, refines the palette with Lloyd iterations and remaps the
// pixels with optional Floyd-Steinberg dithering.
//
// Every call is independent: nothing is cached or shared between calls, so
// Quantize may be used from any number of goroutines at once.
package quant

import (
	"image/color"
	"math"
)

// Channel weights of the distance metric. Alpha carries the most weight so
// that transparency errors, which show up against any background, cost more
// than a small hue shift.
const (
	weightA = 1.5
	weightR = 0.9
	weightG = 1.2
	weightB = 0.9

	// MaxDistance is the largest value distance can return.
	MaxDistance = weightA + weightR + weightG + weightB
)

// Color is a point in premultiplied alpha space with every channel in [0,1].
// All fully transparent pixels map to the zero Color.
type Color struct {
	A, R, G, B float64
}

// ColorFromNRGBA converts a non-premultiplied 8-bit color.
func ColorFromNRGBA(r, g, b, a uint8) Color {
	if a == 0 {
		return Color{}
	}
	al := float64(a) / 255
	return Color{
		A: al,
		R: float64(r) / 255 * al,
		G: float64(g) / 255 * al,
		B: float64(b) / 255 * al,
	}
}

// NRGBA converts c back to 8-bit non-premultiplied channels.
func (c Color) NRGBA() color.NRGBA {
	a := clamp01(c.A)
	if a < 1.0/512 {
		return color.NRGBA{}
	}
	return color.NRGBA{
		R: to8(c.R / a),
		G: to8(c.G / a),
		B: to8(c.B / a),
		A: to8(a),
	}
}

func (c Color) add(o Color) Color {
	return Color{c.A + o.A, c.R + o.R, c.G + o.G, c.B + o.B}
}

func (c Color) sub(o Color) Color {
	return Color{c.A - o.A, c.R - o.R, c.G - o.G, c.B - o.B}
}

func (c Color) scale(f float64) Color {
	return Color{c.A * f, c.R * f, c.G * f, c.B * f}
}

// channel returns the value of channel ch (0=A, 1=R, 2=G, 3=B).
func (c Color) channel(ch int) float64 {
	switch ch {
	case 0:
		return c.A
	case 1:
		return c.R
	case 2:
		return c.G
	default:
		return c.B
	}
}

// clampPremultiplied keeps c inside the valid premultiplied gamut.
func (c Color) clampPremultiplied() Color {
	a := clamp01(c.A)
	return Color{
		A: a,
		R: clamp(c.R, 0, a),
		G: clamp(c.G, 0, a),
		B: clamp(c.B, 0, a),
	}
}

var channelWeights = [4]float64{weightA, weightR, weightG, weightB}

// distance is the weighted squared Euclidean distance between x and y.
func distance(x, y Color) float64 {
	da := x.A - y.A
	dr := x.R - y.R
	dg := x.G - y.G
	db := x.B - y.B
	return weightA*da*da + weightR*dr*dr + weightG*dg*dg + weightB*db*db
}

// Distance reports the perceptual distance between two 8-bit colors.
func Distance(x, y color.NRGBA) float64 {
	return distance(ColorFromNRGBA(x.R, x.G, x.B, x.A), ColorFromNRGBA(y.R, y.G, y.B, y.A))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

// accumulator sums weighted colors. When every member has the same color
// that color is kept verbatim, so a one-color cluster reproduces its color
// without rounding noise.
type accumulator struct {
	sum     Color
	weight  float64
	first   Color
	mixed   bool
	members int
	maxA    float64
}

func (a *accumulator) add(c Color, w float64) {
	if a.members == 0 {
		a.first = c
	} else if c != a.first {
		a.mixed = true
	}
	a.members++
	a.sum = a.sum.add(c.scale(w))
	a.weight += w
	if c.A > a.maxA {
		a.maxA = c.A
	}
}

// mean returns the weighted centroid. With minOpaque below 1 a centroid that
// is almost opaque is rounded up to opaque when the cluster contains an
// opaque color.
func (a *accumulator) mean(minOpaque float64) Color {
	if !a.mixed || a.weight <= 0 {
		return a.first
	}
	c := a.sum.scale(1 / a.weight)
	if minOpaque < 1 && c.A >= minOpaque && a.maxA >= 255.0/256.0 && c.A > 0 {
		c = Color{A: 1, R: c.R / c.A, G: c.G / c.A, B: c.B / c.A}.clampPremultiplied()
	}
	return c
}

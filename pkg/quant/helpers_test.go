package quant

import (
	"image/color"
	"math/rand"
)

// newTestRaster fills a w×h raster from fn.
func newTestRaster(w, h int, fn func(x, y int) color.NRGBA) *Raster {
	r := NewRaster(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.SetNRGBA(x, y, fn(x, y))
		}
	}
	return r
}

func solidRaster(w, h int, c color.NRGBA) *Raster {
	return newTestRaster(w, h, func(int, int) color.NRGBA { return c })
}

func noiseRaster(w, h int, seed int64) *Raster {
	rng := rand.New(rand.NewSource(seed))
	return newTestRaster(w, h, func(int, int) color.NRGBA {
		return color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
	})
}

func gradientRaster(w, h int) *Raster {
	return newTestRaster(w, h, func(x, y int) color.NRGBA {
		v := uint8(x * 255 / (w - 1))
		return color.NRGBA{R: v, G: 255 - v, B: 128, A: 255}
	})
}

// expand turns premultiplied-free 8-bit pixels with alpha 0 into the zero
// color, which is how the quantizer reports them.
func expand(c color.NRGBA) color.NRGBA {
	if c.A == 0 {
		return color.NRGBA{}
	}
	return c
}

func testParams(speed, colors int, dither bool) Params {
	p := DefaultParams()
	p.Speed = speed
	p.PaletteSize = colors
	p.Dither = dither
	return p
}

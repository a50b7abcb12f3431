package quant

import (
	"fmt"
	"image"
	"image/color"
)

// Raster is a non-premultiplied RGBA image, 4 bytes per pixel in row-major
// order. The engine never writes to a caller's Raster.
type Raster struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRaster allocates a transparent w×h raster.
func NewRaster(w, h int) *Raster {
	return &Raster{Width: w, Height: h, Pix: make([]uint8, 4*w*h)}
}

// RasterFromNRGBA wraps the pixels of img without copying when the image
// is tightly packed, and copies otherwise.
func RasterFromNRGBA(img *image.NRGBA) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if img.Stride == 4*w && b.Min == (image.Point{}) {
		return &Raster{Width: w, Height: h, Pix: img.Pix[:4*w*h]}
	}
	r := NewRaster(w, h)
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(r.Pix[4*w*y:4*w*(y+1)], src[:4*w])
	}
	return r
}

// Validate checks that the raster has pixels and a consistent buffer.
func (r *Raster) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil raster", ErrInvalidParameter)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: raster size %dx%d", ErrInvalidParameter, r.Width, r.Height)
	}
	if len(r.Pix) != 4*r.Width*r.Height {
		return fmt.Errorf("%w: raster buffer has %d bytes, want %d",
			ErrInvalidParameter, len(r.Pix), 4*r.Width*r.Height)
	}
	return nil
}

// NRGBAAt returns the pixel at (x, y).
func (r *Raster) NRGBAAt(x, y int) color.NRGBA {
	i := 4 * (y*r.Width + x)
	return color.NRGBA{R: r.Pix[i], G: r.Pix[i+1], B: r.Pix[i+2], A: r.Pix[i+3]}
}

// SetNRGBA sets the pixel at (x, y).
func (r *Raster) SetNRGBA(x, y int, c color.NRGBA) {
	i := 4 * (y*r.Width + x)
	r.Pix[i], r.Pix[i+1], r.Pix[i+2], r.Pix[i+3] = c.R, c.G, c.B, c.A
}

func (r *Raster) colorAt(i int) Color {
	p := r.Pix[4*i : 4*i+4 : 4*i+4]
	return ColorFromNRGBA(p[0], p[1], p[2], p[3])
}

func (r *Raster) alphaAt(i int) uint8 {
	return r.Pix[4*i+3]
}

func (r *Raster) clone() *Raster {
	pix := make([]uint8, len(r.Pix))
	copy(pix, r.Pix)
	return &Raster{Width: r.Width, Height: r.Height, Pix: pix}
}

// ieMinOpaque is the opacity above which old Internet Explorer versions
// render a pixel as opaque; they drop anything below 255 to fully clear.
const ieMinOpaque = 238.0 / 256.0

// modifyAlpha returns a copy of r where almost opaque pixels are pushed
// linearly towards opaque so the forced opacity does not leave a visible
// step.
func modifyAlpha(r *Raster, minOpaque float64) *Raster {
	if minOpaque > 254.0/255.0 {
		return r
	}
	almost := minOpaque * 169.0 / 256.0
	almostInt := uint8(almost * 255)

	out := r.clone()
	for i := 3; i < len(out.Pix); i += 4 {
		a := out.Pix[i]
		if a < almostInt {
			continue
		}
		al := almost + (float64(a)/255-almost)*(1-almost)/(minOpaque-almost)
		out.Pix[i] = to8(al)
	}
	return out
}

package compressor

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/harliandi/go-pngquant/pkg/quality"
	"github.com/harliandi/go-pngquant/pkg/quant"
)

// Options is an immutable set of compression settings. The With methods
// return a modified copy, so a base value can be shared freely.
type Options struct {
	quality quality.Range
	speed   int
	colors  int
	dither  bool
	iebug   bool
}

// DefaultOptions returns mid speed, any quality, 256 colors and dithering.
func DefaultOptions() Options {
	p := quant.DefaultParams()
	return Options{
		quality: quality.Range{Min: p.MinQuality, Max: p.MaxQuality},
		speed:   p.Speed,
		colors:  p.PaletteSize,
		dither:  p.Dither,
		iebug:   p.IEBug,
	}
}

// WithQuality sets the accepted quality range, clamped into 0-100.
func (o Options) WithQuality(lo, hi int) Options {
	o.quality = quality.Range{
		Min: clamp(lo, quality.Min, quality.Max),
		Max: clamp(hi, quality.Min, quality.Max),
	}
	return o
}

// WithSpeed sets the speed, 1 (best) to 11 (fastest).
func (o Options) WithSpeed(speed int) Options {
	o.speed = speed
	return o
}

// WithColors sets the palette ceiling.
func (o Options) WithColors(n int) Options {
	o.colors = n
	return o
}

// WithDither turns error diffusion on or off.
func (o Options) WithDither(on bool) Options {
	o.dither = on
	return o
}

// WithIEBug turns the legacy Internet Explorer alpha workaround on or off.
func (o Options) WithIEBug(on bool) Options {
	o.iebug = on
	return o
}

func (o Options) Quality() quality.Range { return o.quality }
func (o Options) Speed() int             { return o.speed }
func (o Options) Colors() int            { return o.colors }
func (o Options) Dither() bool           { return o.dither }
func (o Options) IEBug() bool            { return o.iebug }

// Params maps the options onto engine parameters.
func (o Options) Params() quant.Params {
	return quant.Params{
		Speed:       o.speed,
		MinQuality:  o.quality.Min,
		MaxQuality:  o.quality.Max,
		PaletteSize: o.colors,
		Dither:      o.dither,
		IEBug:       o.iebug,
	}
}

// String is a canonical form of the options, used in cache keys.
func (o Options) String() string {
	return fmt.Sprintf("quality=%s speed=%d colors=%d dither=%t iebug=%t",
		o.quality, o.speed, o.colors, o.dither, o.iebug)
}

// ParseOptions overlays query parameters on base. Recognized keys are
// quality (see quality.ParseRange), speed, colors, dither and iebug.
// Range checks are left to quant.Params.Validate.
func ParseOptions(base Options, v url.Values) (Options, error) {
	o := base
	if s := v.Get("quality"); s != "" {
		r, err := quality.ParseRange(s)
		if err != nil {
			return base, fmt.Errorf("%w: %v", quant.ErrInvalidParameter, err)
		}
		o = o.WithQuality(r.Min, r.Max)
	}
	if s := v.Get("speed"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return base, fmt.Errorf("%w: speed %q", quant.ErrInvalidParameter, s)
		}
		o = o.WithSpeed(n)
	}
	if s := v.Get("colors"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return base, fmt.Errorf("%w: colors %q", quant.ErrInvalidParameter, s)
		}
		o = o.WithColors(n)
	}
	if s := v.Get("dither"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return base, fmt.Errorf("%w: dither %q", quant.ErrInvalidParameter, s)
		}
		o = o.WithDither(b)
	}
	if s := v.Get("iebug"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return base, fmt.Errorf("%w: iebug %q", quant.ErrInvalidParameter, s)
		}
		o = o.WithIEBug(b)
	}
	return o, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

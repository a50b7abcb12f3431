package quant

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned before any work is done when Params or
	// the input raster are unusable.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrQualityNotMet is returned when the best palette found is still worse
	// than the requested minimum quality.
	ErrQualityNotMet = errors.New("quality below requested minimum")
	// ErrCancelled is returned when the context is done at a stage boundary.
	ErrCancelled = errors.New("quantization cancelled")
)

// QualityError describes a rejected result.
type QualityError struct {
	MSE        float64
	MaxMSE     float64
	Quality    int
	MinQuality int
	Colors     int
}

func (e *QualityError) Error() string {
	return fmt.Sprintf("%v: quality %d < %d (MSE %.6f > %.6f, %d colors)",
		ErrQualityNotMet, e.Quality, e.MinQuality, e.MSE, e.MaxMSE, e.Colors)
}

func (e *QualityError) Unwrap() error {
	return ErrQualityNotMet
}

// Limits of Params.
const (
	MinSpeed       = 1
	MaxSpeed       = 11
	DefaultSpeed   = 6
	MinPaletteSize = 2
	MaxPaletteSize = 256

	// minHistogramEntries is the smallest explicit histogram cap accepted.
	minHistogramEntries = 16
)

// Params configures one Quantize call. It is a plain value; copies are
// independent and nothing in the package keeps a reference to it.
type Params struct {
	// Speed trades quality for time: 1 is slowest and best, 11 fastest.
	Speed int
	// MinQuality and MaxQuality are on a 0-100 scale. A result below
	// MinQuality is rejected; once MaxQuality is reached no more colors are
	// added.
	MinQuality int
	MaxQuality int
	// PaletteSize is the palette ceiling, 2 to 256.
	PaletteSize int
	// Dither enables Floyd-Steinberg error diffusion.
	Dither bool
	// IEBug raises almost opaque pixels to opaque for renderers that treat
	// any translucency as fully transparent.
	IEBug bool
	// TransparentLast puts the fully transparent entry at the end of the
	// palette for viewers that only honor a transparent last index.
	TransparentLast bool
	// MaxHistogramEntries caps the number of distinct colors tracked before
	// near duplicates are merged. Zero derives the cap from Speed.
	MaxHistogramEntries int
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Speed:       DefaultSpeed,
		MinQuality:  0,
		MaxQuality:  100,
		PaletteSize: MaxPaletteSize,
		Dither:      true,
	}
}

// Normalize clamps the quality bounds into 0-100.
func (p Params) Normalize() Params {
	p.MinQuality = clampInt(p.MinQuality, 0, 100)
	p.MaxQuality = clampInt(p.MaxQuality, 0, 100)
	return p
}

// Validate reports the first unusable field.
func (p Params) Validate() error {
	if p.Speed < MinSpeed || p.Speed > MaxSpeed {
		return fmt.Errorf("%w: speed %d not in %d-%d", ErrInvalidParameter, p.Speed, MinSpeed, MaxSpeed)
	}
	if p.MinQuality > p.MaxQuality {
		return fmt.Errorf("%w: quality min %d > max %d", ErrInvalidParameter, p.MinQuality, p.MaxQuality)
	}
	if p.MinQuality < 0 || p.MaxQuality > 100 {
		return fmt.Errorf("%w: quality %d-%d not in 0-100", ErrInvalidParameter, p.MinQuality, p.MaxQuality)
	}
	if p.PaletteSize < MinPaletteSize || p.PaletteSize > MaxPaletteSize {
		return fmt.Errorf("%w: palette size %d not in %d-%d",
			ErrInvalidParameter, p.PaletteSize, MinPaletteSize, MaxPaletteSize)
	}
	if p.MaxHistogramEntries != 0 && p.MaxHistogramEntries < minHistogramEntries {
		return fmt.Errorf("%w: histogram cap %d below %d",
			ErrInvalidParameter, p.MaxHistogramEntries, minHistogramEntries)
	}
	return nil
}

func (p Params) histogramCap() int {
	if p.MaxHistogramEntries > 0 {
		return p.MaxHistogramEntries
	}
	return (1 << 17) + (1<<18)*(MaxSpeed-p.Speed)
}

// sampleStride is the distance between sampled pixels in a row.
func (p Params) sampleStride() int {
	if p.Speed <= 8 {
		return 1
	}
	return p.Speed - 7
}

// useContrastMap reports whether edge detection is worth its cost.
func (p Params) useContrastMap(w, h int) bool {
	return p.Speed < 8 && w >= 4 && h >= 4
}

// exhaustiveAxes is how many split axes the median cut evaluates at every
// position. Zero means the weighted median of the widest axis only.
func (p Params) exhaustiveAxes() int {
	switch {
	case p.Speed <= 3:
		return 4
	case p.Speed <= 7:
		return 2
	default:
		return 0
	}
}

// iterations is the Lloyd iteration budget.
func (p Params) iterations() int {
	n := 8 - p.Speed
	if n < 0 {
		n = 0
	}
	n += n * n / 2
	if n < 1 {
		n = 1
	}
	return n
}

// convergenceLimit stops Lloyd iterations once the error barely moves.
func (p Params) convergenceLimit() float64 {
	return 1.0 / float64(int64(1)<<(23-p.Speed))
}

// attempts is the number of palette generations the orchestrator may run
// while trying to reach MinQuality.
func (p Params) attempts() int {
	if p.Speed <= 5 {
		return 3
	}
	return 2
}

func (p Params) minOpaque() float64 {
	if p.IEBug {
		return ieMinOpaque
	}
	return 1
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

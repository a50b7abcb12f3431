package quant

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/harliandi/go-pngquant/pkg/quality"
)

// State is a stage of one Quantize call.
type State int

const (
	Idle State = iota
	HistogramBuilt
	PaletteGenerated
	PaletteOptimized
	Mapped
	Evaluated
	Done
	Rejected
)

var stateNames = [...]string{
	Idle:             "idle",
	HistogramBuilt:   "histogram-built",
	PaletteGenerated: "palette-generated",
	PaletteOptimized: "palette-optimized",
	Mapped:           "mapped",
	Evaluated:        "evaluated",
	Done:             "done",
	Rejected:         "rejected",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Result is a quantized image: one palette index per pixel plus the palette.
type Result struct {
	Width   int
	Height  int
	Palette []color.NRGBA
	Indices []uint8
	// TransparentIndex is the entry used for fully transparent pixels, or -1
	// if the image has none.
	TransparentIndex int
	// MSE is the error of the palette: the weighted mean distance from every
	// histogram color to its nearest palette entry. It decides Quality and
	// never grows when the same image gets a larger palette.
	MSE float64
	// RemapMSE is the mean distance between the source pixels and the colors
	// Indices select, dithering included.
	RemapMSE float64
	Quality  int
	// Attempts is the number of palettes generated.
	Attempts int
}

// Image returns the result as a paletted image sharing its index buffer.
func (r *Result) Image() *image.Paletted {
	pal := make(color.Palette, len(r.Palette))
	for i, c := range r.Palette {
		pal[i] = c
	}
	return &image.Paletted{
		Pix:     r.Indices,
		Stride:  r.Width,
		Rect:    image.Rect(0, 0, r.Width, r.Height),
		Palette: pal,
	}
}

// Quantize reduces r to a palette of at most p.PaletteSize colors.
//
// Parameters are validated before any work starts. If the result is worse
// than p.MinQuality, more colors are tried while the attempt budget lasts;
// after that the call fails with a *QualityError. ctx is checked between
// stages and cancellation yields an error wrapping ErrCancelled. r is never
// modified.
func Quantize(ctx context.Context, r *Raster, p Params) (*Result, error) {
	q := &quantizer{params: p}
	return q.run(ctx, r)
}

type quantizer struct {
	params Params
	state  State
	// onTransition is called after every state change.
	onTransition func(State)
}

func (q *quantizer) enter(ctx context.Context, s State) error {
	if err := q.checkCancel(ctx); err != nil {
		return err
	}
	q.state = s
	if q.onTransition != nil {
		q.onTransition(s)
	}
	return nil
}

func (q *quantizer) checkCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v after %s", ErrCancelled, err, q.state)
	}
	return nil
}

func (q *quantizer) run(ctx context.Context, src *Raster) (*Result, error) {
	p := q.params.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	q.state = Idle
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	img := src
	if p.IEBug {
		img = modifyAlpha(src, ieMinOpaque)
	}
	var edges []float32
	if p.useContrastMap(img.Width, img.Height) {
		edges = edgeMap(img)
	}
	hist := BuildHistogram(img, edges, p)
	if err := q.enter(ctx, HistogramBuilt); err != nil {
		return nil, err
	}

	// A reserved entry keeps fully transparent pixels exact, at the cost of
	// one color for everything else.
	colors := p.PaletteSize
	if hist.HasTransparent {
		colors--
	}

	maxMSE := quality.ToMSE(p.MinQuality)
	target := quality.ToMSE(p.MaxQuality)
	attempts := p.attempts()
	var rejected *QualityError

	for attempt := 1; ; attempt++ {
		if attempt == attempts {
			target = 0
		}
		best, err := q.searchPalette(ctx, hist, colors, target, p)
		if err != nil {
			return nil, err
		}
		if err := q.enter(ctx, PaletteOptimized); err != nil {
			return nil, err
		}

		pal := best.pal
		transparent := -1
		if hist.HasTransparent {
			transparent = len(pal)
			pal = append(pal, Color{})
		}
		indices := Remap(img, pal, transparent, edges, p.Dither)
		if err := q.enter(ctx, Mapped); err != nil {
			return nil, err
		}
		remapMSE := Evaluate(src, pal, indices)
		if err := q.enter(ctx, Evaluated); err != nil {
			return nil, err
		}

		mse := best.mse
		if mse <= maxMSE {
			if err := q.enter(ctx, Done); err != nil {
				return nil, err
			}
			res := sortPalette(src.Width, src.Height, pal, indices, transparent, p.TransparentLast)
			res.MSE = mse
			res.RemapMSE = remapMSE
			res.Quality = quality.FromMSE(mse)
			res.Attempts = attempt
			return res, nil
		}

		if rejected == nil || mse < rejected.MSE {
			rejected = &QualityError{
				MSE:        mse,
				MaxMSE:     maxMSE,
				Quality:    quality.FromMSE(mse),
				MinQuality: p.MinQuality,
				Colors:     len(pal),
			}
		}
		// Retrying only helps while the last palette stopped short of the
		// ceiling.
		if len(pal) >= p.PaletteSize || attempt >= attempts {
			if err := q.enter(ctx, Rejected); err != nil {
				return nil, err
			}
			return nil, rejected
		}
		target /= 4
	}
}

// sortPalette orders the palette the way the PNG encoder wants it: the
// transparent entry first, then other translucent entries so the tRNS chunk
// can stop early, each group by popularity. With transparentLast the
// transparent entry goes to the end instead. Unused entries are dropped and
// indices are rewritten to match.
func sortPalette(w, h int, pal Palette, indices []uint8, transparent int, transparentLast bool) *Result {
	counts := make([]int, len(pal))
	for _, idx := range indices {
		counts[idx]++
	}
	nrgba := pal.NRGBA()

	rank := func(i int) int {
		switch {
		case i == transparent && transparentLast:
			return 3
		case i == transparent:
			return 0
		case nrgba[i].A < 0xff:
			return 1
		default:
			return 2
		}
	}
	order := make([]int, 0, len(pal))
	for i := range pal {
		if counts[i] > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rank(order[a]), rank(order[b])
		if ra != rb {
			return ra < rb
		}
		return counts[order[a]] > counts[order[b]]
	})

	remap := make([]uint8, len(pal))
	res := &Result{
		Width:            w,
		Height:           h,
		Palette:          make([]color.NRGBA, len(order)),
		Indices:          indices,
		TransparentIndex: -1,
	}
	for newIdx, old := range order {
		remap[old] = uint8(newIdx)
		res.Palette[newIdx] = nrgba[old]
		if old == transparent {
			res.TransparentIndex = newIdx
		}
	}
	for i, idx := range indices {
		indices[i] = remap[idx]
	}
	return res
}

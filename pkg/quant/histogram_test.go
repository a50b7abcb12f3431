package quant

import (
	"context"
	"image/color"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestBuildHistogram tests counting of distinct and transparent pixels
func TestBuildHistogram(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	green := color.NRGBA{0, 255, 0, 255}
	glass := color.NRGBA{0, 0, 255, 128}
	r := newTestRaster(4, 4, func(x, y int) color.NRGBA {
		switch {
		case y == 0 && x < 2:
			return color.NRGBA{R: 50, A: 0}
		case y < 2:
			return red
		case x < 3:
			return green
		default:
			return glass
		}
	})

	h := BuildHistogram(r, nil, testParams(6, 256, false))

	if got, want := h.Colors(), 3; got != want {
		t.Fatalf("Colors() = %d, want %d", got, want)
	}
	if !h.HasTransparent || h.TransparentCount != 2 {
		t.Errorf("HasTransparent = %v, TransparentCount = %d, want true, 2", h.HasTransparent, h.TransparentCount)
	}
	if h.TotalWeight != 14 {
		t.Errorf("TotalWeight = %v, want 14", h.TotalWeight)
	}
	if h.IgnoreBits != 0 {
		t.Errorf("IgnoreBits = %d, want 0", h.IgnoreBits)
	}

	counts := map[color.NRGBA]int{}
	for _, e := range h.Entries {
		counts[e.Color.NRGBA()] = e.Count
	}
	want := map[color.NRGBA]int{red: 6, green: 6, glass: 2}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("entry counts mismatch (-want +got):\n%s", diff)
	}

	if !sort.SliceIsSorted(h.Entries, func(i, j int) bool { return h.Entries[i].key < h.Entries[j].key }) {
		t.Error("entries are not sorted by key")
	}
}

// TestBuildHistogramCap tests that near duplicates merge once the cap is hit
func TestBuildHistogramCap(t *testing.T) {
	r := newTestRaster(32, 32, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 40, A: 255}
	})
	p := testParams(1, 256, false)
	p.MaxHistogramEntries = 16

	h := BuildHistogram(r, nil, p)

	if h.Colors() > 16 {
		t.Errorf("Colors() = %d, want at most 16", h.Colors())
	}
	if h.IgnoreBits == 0 {
		t.Error("IgnoreBits = 0, want colors merged")
	}
	if h.TotalWeight != 32*32 {
		t.Errorf("TotalWeight = %v, want %d", h.TotalWeight, 32*32)
	}
	var count int
	for _, e := range h.Entries {
		count += e.Count
	}
	if count != 32*32 {
		t.Errorf("sum of counts = %d, want %d", count, 32*32)
	}
}

// TestBuildHistogramSampling tests that fast speeds look at fewer pixels
func TestBuildHistogramSampling(t *testing.T) {
	r := noiseRaster(40, 40, 3)

	full := BuildHistogram(r, nil, testParams(8, 256, false))
	fast := BuildHistogram(r, nil, testParams(11, 256, false))

	if full.TotalWeight != 1600 {
		t.Errorf("speed 8 TotalWeight = %v, want 1600", full.TotalWeight)
	}
	if fast.TotalWeight != 400 {
		t.Errorf("speed 11 TotalWeight = %v, want 400", fast.TotalWeight)
	}
}

// TestBuildHistogramTransparentOutsideSample tests transparency detection
// on pixels the sampler skips
func TestBuildHistogramTransparentOutsideSample(t *testing.T) {
	r := solidRaster(8, 8, color.NRGBA{1, 2, 3, 255})
	r.SetNRGBA(1, 0, color.NRGBA{})

	h := BuildHistogram(r, nil, testParams(11, 256, false))
	if h.TransparentCount != 0 {
		t.Fatalf("TransparentCount = %d, want 0 (pixel not sampled)", h.TransparentCount)
	}
	if !h.HasTransparent {
		t.Error("HasTransparent = false, want true")
	}
}

func TestBuildHistogramDeterministic(t *testing.T) {
	r := noiseRaster(64, 64, 7)
	edges := edgeMap(r)
	p := testParams(4, 256, true)

	a := BuildHistogram(r, edges, p)
	b := BuildHistogram(r, edges, p)
	if diff := cmp.Diff(a, b, cmp.AllowUnexported(HistogramEntry{})); diff != "" {
		t.Errorf("histograms differ (-first +second):\n%s", diff)
	}
}

func TestEdgeMap(t *testing.T) {
	// Left half black, right half white: only the two middle columns are edges.
	r := newTestRaster(8, 4, func(x, y int) color.NRGBA {
		if x < 4 {
			return color.NRGBA{0, 0, 0, 255}
		}
		return color.NRGBA{255, 255, 255, 255}
	})
	edges := edgeMap(r)

	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			e := edges[y*8+x]
			onEdge := x == 3 || x == 4
			if onEdge && e < 0.5 {
				t.Errorf("edge(%d,%d) = %v, want strong edge", x, y, e)
			}
			if !onEdge && e != 0 {
				t.Errorf("edge(%d,%d) = %v, want 0", x, y, e)
			}
		}
	}
	if got := importance(1); got != 3 {
		t.Errorf("importance(1) = %v, want 3", got)
	}
	if got := ditherLevel(nil, 0); got != 1 {
		t.Errorf("ditherLevel(nil) = %v, want 1", got)
	}
}

// TestBuildHistogramFastKeepsExactColors tests that fast speeds only merge
// colors once the cap is exceeded
func TestBuildHistogramFastKeepsExactColors(t *testing.T) {
	r := newTestRaster(4, 4, func(x, y int) color.NRGBA {
		if x < 2 {
			return color.NRGBA{R: 100, G: 7, B: 9, A: 255}
		}
		return color.NRGBA{R: 101, G: 7, B: 9, A: 255}
	})
	for _, speed := range []int{8, 10, 11} {
		h := BuildHistogram(r, nil, testParams(speed, 256, false))
		if h.IgnoreBits != 0 || h.Colors() != 2 {
			t.Errorf("speed %d: IgnoreBits = %d, Colors() = %d, want 0, 2", speed, h.IgnoreBits, h.Colors())
		}

		res, err := Quantize(context.Background(), r, testParams(speed, 2, false))
		if err != nil {
			t.Fatalf("speed %d: Quantize() error = %v", speed, err)
		}
		if res.MSE != 0 || len(res.Palette) != 2 {
			t.Errorf("speed %d: MSE = %v, len(Palette) = %d, want 0, 2", speed, res.MSE, len(res.Palette))
		}
	}

	// Over the cap, fast speeds drop two bits at once.
	grid := newTestRaster(32, 32, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(x), G: uint8(y), B: 40, A: 255}
	})
	p := testParams(10, 256, false)
	p.MaxHistogramEntries = 100
	if h := BuildHistogram(grid, nil, p); h.IgnoreBits != 2 {
		t.Errorf("IgnoreBits over cap = %d, want 2", h.IgnoreBits)
	}
}

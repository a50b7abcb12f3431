package quant

import "context"

// candidateSizes are the palette sizes that get their own median cut and
// Lloyd refinement. Sizes in between are reached by growing the best palette
// found so far.
var candidateSizes = []int{1, 2, 3, 4, 6, 8, 12, 16, 24, 32, 48, 64, 96, 128, 192, 255, 256}

// candidate is a palette together with the weighted error of every
// histogram entry against its nearest color.
type candidate struct {
	pal  Palette
	errs []float64
	mse  float64
}

func newCandidate(h *Histogram, pal Palette) *candidate {
	c := &candidate{
		pal:  pal,
		errs: make([]float64, len(h.Entries)),
	}
	if len(pal) == 0 || h.TotalWeight <= 0 {
		return c
	}
	c.mse = assignEntries(h, pal, make([]int, len(h.Entries)), c.errs)
	return c
}

// better reports whether c beats o: lower error, or the same error with
// fewer colors.
func (c *candidate) better(o *candidate) bool {
	if o == nil {
		return true
	}
	if c.mse != o.mse {
		return c.mse < o.mse
	}
	return len(c.pal) < len(o.pal)
}

// grow adds the worst represented entry as a new color until the palette
// has n colors or its error is down to target. Every added color can only
// lower the error of each entry, so the result is never worse than c was.
func (c *candidate) grow(h *Histogram, n int, target float64) {
	for len(c.pal) < n && c.mse > target {
		worst := -1
		var most float64
		for i, e := range c.errs {
			if e > most {
				most = e
				worst = i
			}
		}
		if worst < 0 {
			return
		}
		col := h.Entries[worst].Color
		c.pal = append(c.pal, col)

		var total float64
		for i, e := range h.Entries {
			if d := e.Weight * distance(e.Color, col); d < c.errs[i] {
				c.errs[i] = d
			}
			total += c.errs[i]
		}
		c.mse = total / h.TotalWeight
	}
}

// searchPalette finds a palette of at most n colors for h.
//
// Every candidate size up to n gets a median cut refined by Optimize. The
// best palette so far is grown to each candidate size before it competes
// with that size's refined palette, and is finally grown to n. Growing never
// raises the error and a candidate only replaces the best one when it is
// better, so for a fixed histogram and target the error of the result never
// increases with n.
func (q *quantizer) searchPalette(ctx context.Context, h *Histogram, n int, target float64, p Params) (*candidate, error) {
	var sizes []int
	for _, s := range candidateSizes {
		if s <= n {
			sizes = append(sizes, s)
		}
	}
	cuts := medianCutSizes(h, sizes, target, p)
	if err := q.enter(ctx, PaletteGenerated); err != nil {
		return nil, err
	}

	var best *candidate
	prevLen := -1
	for i, size := range sizes {
		if err := q.checkCancel(ctx); err != nil {
			return nil, err
		}
		if best != nil {
			best.grow(h, size, target)
		}
		// Splitting stopped before this size: the cut is the one already
		// tried.
		if len(cuts[i]) == prevLen {
			continue
		}
		prevLen = len(cuts[i])

		pal, _ := Optimize(h, cuts[i], p)
		if c := newCandidate(h, pal); c.better(best) {
			best = c
		}
	}
	if best == nil {
		best = newCandidate(h, nil)
	}
	best.grow(h, n, target)
	return best, nil
}

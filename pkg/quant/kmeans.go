package quant

import "math"

// Optimize refines pal with Lloyd iterations over the histogram entries:
// every entry is assigned to its nearest color and every color moves to the
// weighted centroid of its entries. It returns the refined palette (same
// size, pal itself is not modified) and its histogram-weighted mean error.
func Optimize(h *Histogram, pal Palette, p Params) (Palette, float64) {
	out := make(Palette, len(pal))
	copy(out, pal)
	if len(out) == 0 || len(h.Entries) == 0 || h.TotalWeight <= 0 {
		return out, 0
	}

	minOpaque := p.minOpaque()
	limit := p.convergenceLimit()
	assign := make([]int, len(h.Entries))
	errs := make([]float64, len(h.Entries))
	accs := make([]accumulator, len(out))

	prev := math.Inf(1)
	for it := 0; it < p.iterations(); it++ {
		mse := assignEntries(h, out, assign, errs)

		for k := range accs {
			accs[k] = accumulator{}
		}
		for i, e := range h.Entries {
			accs[assign[i]].add(e.Color, e.Weight)
		}
		var seeded []bool
		for k := range out {
			if accs[k].weight > 0 {
				out[k] = accs[k].mean(minOpaque)
				continue
			}
			if seeded == nil {
				seeded = make([]bool, len(h.Entries))
			}
			if i := worstEntry(errs, seeded); i >= 0 {
				seeded[i] = true
				out[k] = h.Entries[i].Color
			}
		}

		if math.Abs(prev-mse) < limit {
			break
		}
		prev = mse
	}
	return out, assignEntries(h, out, assign, errs)
}

// assignEntries maps every entry to its nearest palette color, records its
// weighted error in errs and returns the mean error.
func assignEntries(h *Histogram, pal Palette, assign []int, errs []float64) float64 {
	nm := newNearestMap(pal)
	var total float64
	for i, e := range h.Entries {
		idx, d := nm.search(e.Color, assign[i])
		assign[i] = idx
		errs[i] = e.Weight * d
		total += errs[i]
	}
	return total / h.TotalWeight
}

// worstEntry returns the unused entry with the largest weighted error, the
// lowest index on ties, or -1 if no entry has any error left.
func worstEntry(errs []float64, used []bool) int {
	best := -1
	var worst float64
	for i, e := range errs {
		if !used[i] && e > worst {
			worst = e
			best = i
		}
	}
	return best
}

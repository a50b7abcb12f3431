package quant

import (
	"math"
	"sort"
)

type neighbour struct {
	index int
	// dist is the plain (not squared) distance between the two entries.
	dist float64
}

// nearestMap answers closest-palette-entry queries. A query starts from a
// guess, usually the answer for the previous pixel, and uses the triangle
// inequality to skip entries that cannot beat the best match so far.
type nearestMap struct {
	palette Palette
	// closest[i] is the squared distance from entry i to its closest other
	// entry.
	closest    []float64
	neighbours [][]neighbour
}

func newNearestMap(pal Palette) *nearestMap {
	n := len(pal)
	m := &nearestMap{
		palette:    pal,
		closest:    make([]float64, n),
		neighbours: make([][]neighbour, n),
	}
	for i := range pal {
		nb := make([]neighbour, 0, n-1)
		best := math.Inf(1)
		for j := range pal {
			if i == j {
				continue
			}
			d := distance(pal[i], pal[j])
			if d < best {
				best = d
			}
			nb = append(nb, neighbour{index: j, dist: math.Sqrt(d)})
		}
		sort.SliceStable(nb, func(a, b int) bool { return nb[a].dist < nb[b].dist })
		m.closest[i] = best
		m.neighbours[i] = nb
	}
	return m
}

// search returns the index of the palette entry closest to c and its squared
// distance. Ties go to the lowest index.
func (m *nearestMap) search(c Color, guess int) (int, float64) {
	if guess < 0 || guess >= len(m.palette) {
		guess = 0
	}
	gd := distance(c, m.palette[guess])
	// Closer than half the gap to any other entry: nothing can beat it.
	if gd < m.closest[guess]/4 {
		return guess, gd
	}

	best, bestD := guess, gd
	reach := math.Sqrt(gd)
	for _, nb := range m.neighbours[guess] {
		// |c - nb| >= nb.dist - reach, so once that exceeds the best distance
		// no further neighbour can win.
		if nb.dist-reach > math.Sqrt(bestD)+1e-12 {
			break
		}
		d := distance(c, m.palette[nb.index])
		if d < bestD || (d == bestD && nb.index < best) {
			best, bestD = nb.index, d
		}
	}
	return best, bestD
}

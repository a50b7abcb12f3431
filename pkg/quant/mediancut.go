package quant

import (
	"image/color"
	"math"
	"sort"
)

// Palette is an ordered list of colors; a pixel refers to a color by index.
type Palette []Color

// NRGBA converts the palette to 8-bit colors.
func (pal Palette) NRGBA() []color.NRGBA {
	out := make([]color.NRGBA, len(pal))
	for i, c := range pal {
		out[i] = c.NRGBA()
	}
	return out
}

// boxes lighter than this are not worth another color
const minBoxWeight = 1e-9

type box struct {
	entries []HistogramEntry
	weight  float64
	mean    Color
	sse     float64
	frozen  bool
}

func newBox(entries []HistogramEntry, minOpaque float64) *box {
	var acc accumulator
	for _, e := range entries {
		acc.add(e.Color, e.Weight)
	}
	b := &box{entries: entries, weight: acc.weight, mean: acc.mean(minOpaque)}
	for _, e := range entries {
		b.sse += e.Weight * distance(e.Color, b.mean)
	}
	return b
}

func (b *box) splittable() bool {
	return !b.frozen && len(b.entries) >= 2 && b.sse > 0 && b.weight > minBoxWeight
}

// MedianCut partitions the histogram into at most n boxes and returns the
// weighted centroid of each, in the order the boxes were created. Splitting
// stops early once the mean box error drops to targetMSE.
func MedianCut(h *Histogram, n int, targetMSE float64, p Params) Palette {
	return medianCutSizes(h, []int{n}, targetMSE, p)[0]
}

// medianCutSizes runs one split sequence and snapshots the centroids when it
// reaches each of sizes, which must be ascending. Because every split keeps
// the boxes made before it, the snapshot for size k equals MedianCut(h, k).
// Sizes beyond the point where splitting stopped get the final palette.
func medianCutSizes(h *Histogram, sizes []int, targetMSE float64, p Params) []Palette {
	out := make([]Palette, len(sizes))
	if len(h.Entries) == 0 || len(sizes) == 0 {
		return out
	}
	minOpaque := p.minOpaque()
	work := make([]HistogramEntry, len(h.Entries))
	copy(work, h.Entries)

	boxes := []*box{newBox(work, minOpaque)}
	next := 0
	snapshot := func() {
		for next < len(sizes) && sizes[next] <= len(boxes) {
			if sizes[next] > 0 {
				out[next] = centroids(boxes)
			}
			next++
		}
	}
	snapshot()
	for next < len(sizes) {
		if h.TotalWeight > 0 && totalError(boxes)/h.TotalWeight <= targetMSE {
			break
		}
		bi := -1
		var worst float64
		for i, b := range boxes {
			if b.splittable() && b.sse > worst {
				worst = b.sse
				bi = i
			}
		}
		if bi < 0 {
			break
		}
		left, right, ok := splitBox(boxes[bi], p.exhaustiveAxes(), minOpaque)
		if !ok {
			boxes[bi].frozen = true
			continue
		}
		boxes[bi] = left
		boxes = append(boxes, right)
		snapshot()
	}
	for ; next < len(sizes); next++ {
		if sizes[next] > 0 {
			out[next] = centroids(boxes)
		}
	}
	return out
}

func centroids(boxes []*box) Palette {
	pal := make(Palette, len(boxes))
	for i, b := range boxes {
		pal[i] = b.mean
	}
	return pal
}

func totalError(boxes []*box) float64 {
	var sum float64
	for _, b := range boxes {
		sum += b.sse
	}
	return sum
}

// channelStats holds weighted first and second moments per channel.
type channelStats struct {
	w float64
	s [4]float64
	q [4]float64
}

func (cs *channelStats) add(e HistogramEntry) {
	cs.w += e.Weight
	for ch := 0; ch < 4; ch++ {
		v := e.Color.channel(ch)
		cs.s[ch] += e.Weight * v
		cs.q[ch] += e.Weight * v * v
	}
}

func (cs *channelStats) minus(o *channelStats) channelStats {
	r := channelStats{w: cs.w - o.w}
	for ch := 0; ch < 4; ch++ {
		r.s[ch] = cs.s[ch] - o.s[ch]
		r.q[ch] = cs.q[ch] - o.q[ch]
	}
	return r
}

// variance is the weighted scatter of one channel around its mean.
func (cs *channelStats) variance(ch int) float64 {
	if cs.w <= 0 {
		return 0
	}
	v := cs.q[ch] - cs.s[ch]*cs.s[ch]/cs.w
	if v < 0 {
		return 0
	}
	return channelWeights[ch] * v
}

func (cs *channelStats) sse() float64 {
	var sum float64
	for ch := 0; ch < 4; ch++ {
		sum += cs.variance(ch)
	}
	return sum
}

// axesByVariance orders the channels widest first.
func axesByVariance(entries []HistogramEntry) [4]int {
	var cs channelStats
	for _, e := range entries {
		cs.add(e)
	}
	axes := [4]int{0, 1, 2, 3}
	sort.SliceStable(axes[:], func(i, j int) bool {
		return cs.variance(axes[i]) > cs.variance(axes[j])
	})
	return axes
}

func sortByChannel(entries []HistogramEntry, ch int) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Color.channel(ch) < entries[j].Color.channel(ch)
	})
}

// splitBox divides b in two. With exhaustive > 0 that many of the widest
// axes are tried at every position and the split with the lowest combined
// error wins; otherwise the widest axis is cut at its weighted median.
func splitBox(b *box, exhaustive int, minOpaque float64) (*box, *box, bool) {
	axes := axesByVariance(b.entries)

	at := -1
	if exhaustive == 0 {
		for _, ch := range axes {
			sortByChannel(b.entries, ch)
			if i, ok := medianSplit(b.entries, ch); ok {
				at = i
				break
			}
		}
	} else {
		scratch := make([]HistogramEntry, len(b.entries))
		best := make([]HistogramEntry, len(b.entries))
		bestCost := math.Inf(1)
		for _, ch := range axes[:exhaustive] {
			copy(scratch, b.entries)
			sortByChannel(scratch, ch)
			i, cost, ok := bestSplit(scratch, ch)
			if ok && cost < bestCost {
				bestCost = cost
				at = i
				copy(best, scratch)
			}
		}
		if at >= 0 {
			copy(b.entries, best)
		}
	}
	if at < 0 {
		return nil, nil, false
	}
	return newBox(b.entries[:at], minOpaque), newBox(b.entries[at:], minOpaque), true
}

// bestSplit scans every boundary between distinct values of ch in sorted
// entries and returns the one with the lowest total squared error.
func bestSplit(entries []HistogramEntry, ch int) (int, float64, bool) {
	var total channelStats
	for _, e := range entries {
		total.add(e)
	}
	at := -1
	bestCost := math.Inf(1)
	var left channelStats
	for i := 1; i < len(entries); i++ {
		left.add(entries[i-1])
		if entries[i-1].Color.channel(ch) == entries[i].Color.channel(ch) {
			continue
		}
		right := total.minus(&left)
		cost := left.sse() + right.sse()
		if cost < bestCost {
			bestCost = cost
			at = i
		}
	}
	return at, bestCost, at > 0
}

// medianSplit returns the boundary closest to the weighted median of the
// sorted entries that separates two distinct values of ch.
func medianSplit(entries []HistogramEntry, ch int) (int, bool) {
	var total float64
	for _, e := range entries {
		total += e.Weight
	}
	mid := 1
	var cum float64
	for i, e := range entries {
		cum += e.Weight
		if cum >= total/2 {
			mid = i + 1
			break
		}
	}
	valid := func(i int) bool {
		return i > 0 && i < len(entries) && entries[i-1].Color.channel(ch) < entries[i].Color.channel(ch)
	}
	for d := 0; d < len(entries); d++ {
		if valid(mid + d) {
			return mid + d, true
		}
		if valid(mid - d) {
			return mid - d, true
		}
	}
	return 0, false
}

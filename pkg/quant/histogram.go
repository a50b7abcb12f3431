package quant

import "sort"

// HistogramEntry is one distinct color (or bucket of near duplicates).
type HistogramEntry struct {
	Color Color
	// Weight is the sum of the importance of every sampled pixel.
	Weight float64
	// Count is the number of sampled pixels.
	Count int

	key uint32
}

// Histogram holds the weighted distinct colors of a raster. Fully
// transparent pixels are not entries; they are tracked separately because
// they always get their own palette slot.
type Histogram struct {
	Entries     []HistogramEntry
	TotalWeight float64
	// IgnoreBits is the number of low bits dropped per channel to keep the
	// histogram under its cap.
	IgnoreBits uint
	// HasTransparent is true if any pixel of the raster, sampled or not, has
	// alpha 0.
	HasTransparent bool
	// TransparentCount is the number of sampled transparent pixels.
	TransparentCount int
}

// BuildHistogram counts the colors of r. edges may be nil; when set it
// holds one edge strength per pixel that boosts the weight of that pixel.
func BuildHistogram(r *Raster, edges []float32, p Params) *Histogram {
	limit := p.histogramCap()
	stride := p.sampleStride()

	// Fast speeds coarsen in bigger steps once the exact colors overflow the
	// cap, but an image that fits keeps every color.
	step := uint(1)
	if p.Speed > 7 {
		step = 2
	}
	for ignore := uint(0); ignore < 8; {
		if h, ok := accumulateHistogram(r, edges, stride, ignore, limit); ok {
			return h
		}
		if ignore == 0 {
			ignore = step
		} else {
			ignore++
		}
	}
	h, _ := accumulateHistogram(r, edges, stride, 8, 0)
	return h
}

// accumulateHistogram gives up and returns false as soon as the number of
// distinct keys exceeds limit. A zero limit never gives up.
func accumulateHistogram(r *Raster, edges []float32, stride int, ignore uint, limit int) (*Histogram, bool) {
	mask := uint8(0xff << ignore)
	buckets := make(map[uint32]*accumulator)
	h := &Histogram{IgnoreBits: ignore}

	w := r.Width
	for y := 0; y < r.Height; y++ {
		for x := y % stride; x < w; x += stride {
			i := y*w + x
			p := r.Pix[4*i : 4*i+4 : 4*i+4]
			if p[3] == 0 {
				h.TransparentCount++
				continue
			}
			key := uint32(p[3]&mask)<<24 | uint32(p[0]&mask)<<16 | uint32(p[1]&mask)<<8 | uint32(p[2]&mask)
			wt := 1.0
			if edges != nil {
				wt = importance(edges[i])
			}
			acc, ok := buckets[key]
			if !ok {
				if limit > 0 && len(buckets) >= limit {
					return nil, false
				}
				acc = &accumulator{}
				buckets[key] = acc
			}
			acc.add(ColorFromNRGBA(p[0], p[1], p[2], p[3]), wt)
		}
	}
	h.HasTransparent = h.TransparentCount > 0 || hasTransparentPixel(r)

	h.Entries = make([]HistogramEntry, 0, len(buckets))
	for key, acc := range buckets {
		h.Entries = append(h.Entries, HistogramEntry{
			Color:  acc.mean(1),
			Weight: acc.weight,
			Count:  acc.members,
			key:    key,
		})
	}
	// Map order is random; everything downstream relies on this order.
	sort.Slice(h.Entries, func(i, j int) bool {
		return h.Entries[i].key < h.Entries[j].key
	})
	for _, e := range h.Entries {
		h.TotalWeight += e.Weight
	}
	return h, true
}

func hasTransparentPixel(r *Raster) bool {
	for i := 3; i < len(r.Pix); i += 4 {
		if r.Pix[i] == 0 {
			return true
		}
	}
	return false
}

// Colors returns the number of entries.
func (h *Histogram) Colors() int {
	return len(h.Entries)
}

package quant

// Floyd-Steinberg weights.
const (
	fsRight      = 7.0 / 16
	fsBelowLeft  = 3.0 / 16
	fsBelow      = 5.0 / 16
	fsBelowRight = 1.0 / 16
)

// Large accumulated errors are damped so that a run of badly matched
// pixels does not smear across the whole row.
const (
	maxUndampedError = 16.0 / (256 * 256)
	errorDamping     = 0.75
)

// Remap assigns every pixel of r to a palette index. transparent is the
// index reserved for fully transparent pixels, or -1 if there is none, in
// which case they take the entry nearest to the zero color. edges may be nil;
// it lowers the dithering strength on outlines.
func Remap(r *Raster, pal Palette, transparent int, edges []float32, dither bool) []uint8 {
	nm := newNearestMap(pal)
	clearIndex, _ := nm.search(Color{}, 0)
	if transparent >= 0 {
		clearIndex = transparent
	}
	if dither {
		return remapDithered(r, nm, clearIndex, edges)
	}

	out := make([]uint8, r.Width*r.Height)
	guess := 0
	for i := range out {
		if r.alphaAt(i) == 0 {
			out[i] = uint8(clearIndex)
			continue
		}
		guess, _ = nm.search(r.colorAt(i), guess)
		out[i] = uint8(guess)
	}
	return out
}

func remapDithered(r *Raster, nm *nearestMap, clearIndex int, edges []float32) []uint8 {
	w := r.Width
	out := make([]uint8, w*r.Height)
	// Error rows are offset by one so x-1 and x+1 never need bounds checks.
	thisErr := make([]Color, w+2)
	nextErr := make([]Color, w+2)

	guess := 0
	for y := 0; y < r.Height; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if r.alphaAt(i) == 0 {
				out[i] = uint8(clearIndex)
				continue
			}
			e := thisErr[x+1]
			if e.A*e.A+e.R*e.R+e.G*e.G+e.B*e.B > maxUndampedError {
				e = e.scale(errorDamping)
			}
			target := r.colorAt(i).add(e.scale(ditherLevel(edges, i))).clampPremultiplied()

			idx := clearIndex
			if target.A >= 1.0/256 {
				idx, _ = nm.search(target, guess)
				guess = idx
			}
			out[i] = uint8(idx)

			diff := target.sub(nm.palette[idx])
			thisErr[x+2] = thisErr[x+2].add(diff.scale(fsRight))
			nextErr[x] = nextErr[x].add(diff.scale(fsBelowLeft))
			nextErr[x+1] = nextErr[x+1].add(diff.scale(fsBelow))
			nextErr[x+2] = nextErr[x+2].add(diff.scale(fsBelowRight))
		}
		thisErr, nextErr = nextErr, thisErr
		for x := range nextErr {
			nextErr[x] = Color{}
		}
	}
	return out
}

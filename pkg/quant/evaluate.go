package quant

// Evaluate returns the mean distance between every pixel of r and the
// palette color its index selects. 0 means the image is reproduced exactly;
// MaxDistance is the worst possible score.
func Evaluate(r *Raster, pal Palette, indices []uint8) float64 {
	if len(indices) == 0 {
		return 0
	}
	var total float64
	for i, idx := range indices {
		total += distance(r.colorAt(i), pal[idx])
	}
	return total / float64(len(indices))
}

package quant

import "math"

// edgeMap returns, for every pixel, how strongly it differs from its four
// neighbours, scaled to [0,1]. Pixels on the border compare only with the
// neighbours they have.
func edgeMap(r *Raster) []float32 {
	w, h := r.Width, r.Height
	edges := make([]float32, w*h)

	prev := make([]Color, w)
	cur := make([]Color, w)
	next := make([]Color, w)
	loadRow := func(dst []Color, y int) {
		for x := 0; x < w; x++ {
			dst[x] = r.colorAt(y*w + x)
		}
	}
	loadRow(cur, 0)
	if h > 1 {
		loadRow(next, 1)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := cur[x]
			var d float64
			if x > 0 {
				d = math.Max(d, distance(c, cur[x-1]))
			}
			if x+1 < w {
				d = math.Max(d, distance(c, cur[x+1]))
			}
			if y > 0 {
				d = math.Max(d, distance(c, prev[x]))
			}
			if y+1 < h {
				d = math.Max(d, distance(c, next[x]))
			}
			edges[y*w+x] = float32(math.Sqrt(d / MaxDistance))
		}
		prev, cur, next = cur, next, prev
		if y+2 < h {
			loadRow(next, y+2)
		}
	}
	return edges
}

// importance turns an edge strength into a histogram weight. Colors on
// edges count more so that outlines stay sharp after quantization.
func importance(edge float32) float64 {
	return 1 + 2*float64(edge)
}

// ditherLevel scales the diffused error. Edges get less dithering because
// error diffusion across an outline produces jagged lines.
func ditherLevel(edges []float32, i int) float64 {
	if edges == nil {
		return 1
	}
	return 1 - 0.5*float64(edges[i])
}

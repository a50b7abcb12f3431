package quant

import (
	"testing"
)

// TestOptimizeImproves tests that refinement never makes the palette worse
func TestOptimizeImproves(t *testing.T) {
	r := noiseRaster(48, 48, 5)
	for _, speed := range []int{1, 6, 11} {
		p := testParams(speed, 16, false)
		h := BuildHistogram(r, nil, p)
		initial := MedianCut(h, 16, 0, p)

		assign := make([]int, len(h.Entries))
		before := assignEntries(h, initial, assign, make([]float64, len(h.Entries)))

		refined, after := Optimize(h, initial, p)
		if len(refined) != len(initial) {
			t.Fatalf("speed %d: len(refined) = %d, want %d", speed, len(refined), len(initial))
		}
		if after > before+1e-12 {
			t.Errorf("speed %d: error grew from %v to %v", speed, before, after)
		}
	}
}

// TestOptimizeReseedsDuplicates tests that an entry nobody uses is moved
// to the worst represented color
func TestOptimizeReseedsDuplicates(t *testing.T) {
	h := &Histogram{
		Entries: []HistogramEntry{
			{Color: Color{A: 1}, Weight: 10},
			{Color: Color{A: 1, R: 1, G: 1, B: 1}, Weight: 1},
		},
		TotalWeight: 11,
	}
	black := Color{A: 1}
	pal := Palette{black, black}

	got, mse := Optimize(h, pal, testParams(6, 2, false))
	if got[0] != black {
		t.Errorf("palette[0] = %+v, want black", got[0])
	}
	if want := (Color{A: 1, R: 1, G: 1, B: 1}); got[1] != want {
		t.Errorf("palette[1] = %+v, want reseeded white %+v", got[1], want)
	}
	if mse != 0 {
		t.Errorf("mse = %v, want 0", mse)
	}
	if pal[1] != black {
		t.Error("Optimize modified its input palette")
	}
}

func TestOptimizeEmpty(t *testing.T) {
	got, mse := Optimize(&Histogram{}, nil, DefaultParams())
	if len(got) != 0 || mse != 0 {
		t.Errorf("Optimize(empty) = %v, %v", got, mse)
	}
}

func TestParamsSchedules(t *testing.T) {
	tests := []struct {
		speed      int
		iterations int
		axes       int
		attempts   int
		stride     int
	}{
		{1, 31, 4, 3, 1},
		{3, 17, 4, 3, 1},
		{6, 4, 2, 2, 1},
		{7, 1, 2, 2, 1},
		{8, 1, 0, 2, 1},
		{11, 1, 0, 2, 4},
	}
	for _, tt := range tests {
		p := testParams(tt.speed, 256, true)
		if got := p.iterations(); got != tt.iterations {
			t.Errorf("speed %d: iterations() = %d, want %d", tt.speed, got, tt.iterations)
		}
		if got := p.exhaustiveAxes(); got != tt.axes {
			t.Errorf("speed %d: exhaustiveAxes() = %d, want %d", tt.speed, got, tt.axes)
		}
		if got := p.attempts(); got != tt.attempts {
			t.Errorf("speed %d: attempts() = %d, want %d", tt.speed, got, tt.attempts)
		}
		if got := p.sampleStride(); got != tt.stride {
			t.Errorf("speed %d: sampleStride() = %d, want %d", tt.speed, got, tt.stride)
		}
	}
}

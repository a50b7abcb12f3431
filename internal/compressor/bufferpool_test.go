package compressor

import "testing"

func TestBufferPool(t *testing.T) {
	p := NewBufferPool()

	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Small", 1000, smallBuffer},
		{"Medium", 100 * 1024, mediumBuffer},
		{"Large", 2 * 1024 * 1024, largeBuffer},
		{"Oversized", 8 * 1024 * 1024, 8 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := p.Get(tt.size)
			if b.Len() != 0 {
				t.Errorf("Get() len = %d, want 0", b.Len())
			}
			if b.Cap() < tt.wantCap {
				t.Errorf("Get() cap = %d, want at least %d", b.Cap(), tt.wantCap)
			}
			b.WriteString("data")
			p.Put(b)
		})
	}

	// Reused buffers come back empty.
	b := p.Get(10)
	if b.Len() != 0 {
		t.Errorf("reused buffer len = %d, want 0", b.Len())
	}
	p.Put(nil)
}

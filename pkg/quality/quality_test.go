package quality

import (
	"errors"
	"testing"
)

// TestToMSE tests the quality curve end points and its direction
func TestToMSE(t *testing.T) {
	if got := ToMSE(0); got != MaxMSE {
		t.Errorf("ToMSE(0) = %v, want %v", got, MaxMSE)
	}
	if got := ToMSE(100); got != 0 {
		t.Errorf("ToMSE(100) = %v, want 0", got)
	}
	if got := ToMSE(99); got <= 0 || got > 1e-4 {
		t.Errorf("ToMSE(99) = %v, want small positive value", got)
	}
	for q := 0; q < 100; q++ {
		if ToMSE(q) <= ToMSE(q+1) {
			t.Fatalf("ToMSE(%d) = %v not above ToMSE(%d) = %v", q, ToMSE(q), q+1, ToMSE(q+1))
		}
	}
	if got := ToMSE(150); got != ToMSE(100) {
		t.Errorf("ToMSE(150) = %v, want clamp to %v", got, ToMSE(100))
	}
}

// TestFromMSE tests that FromMSE inverts ToMSE
func TestFromMSE(t *testing.T) {
	for q := 0; q <= 100; q++ {
		if got := FromMSE(ToMSE(q)); got != q {
			t.Errorf("FromMSE(ToMSE(%d)) = %d", q, got)
		}
	}
	if got := FromMSE(0); got != 100 {
		t.Errorf("FromMSE(0) = %d, want 100", got)
	}
	if got := FromMSE(1e-9); got != 99 {
		t.Errorf("FromMSE(1e-9) = %d, want 99", got)
	}
	if got := FromMSE(1e30); got != 0 {
		t.Errorf("FromMSE(1e30) = %d, want 0", got)
	}
	// Just above the limit of 90 falls to 89.
	if got := FromMSE(ToMSE(90) * 1.0001); got != 89 {
		t.Errorf("FromMSE(above 90) = %d, want 89", got)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"80", Range{72, 80}, false},
		{"100", Range{90, 100}, false},
		{"-60", Range{0, 60}, false},
		{"60-", Range{60, 100}, false},
		{"60-80", Range{60, 80}, false},
		{"6-8", Range{6, 8}, false},
		{" 0-100 ", Range{0, 100}, false},
		{"", Range{}, true},
		{"-", Range{}, true},
		{"abc", Range{}, true},
		{"80-60", Range{}, true},
		{"120", Range{}, true},
		{"1-2-3", Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidRange) {
					t.Errorf("ParseRange(%q) error = %v, want ErrInvalidRange", tt.in, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseRange(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			back, err := ParseRange(got.String())
			if err != nil || back != got {
				t.Errorf("ParseRange(%q.String()) = %+v, %v", tt.in, back, err)
			}
		})
	}
}

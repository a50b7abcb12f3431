// Package quality converts between the 0-100 quality scale users work with
// and the mean squared error the quantizer measures.
package quality

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// Min and Max bound the quality scale.
	Min = 0
	Max = 100

	// MaxMSE is the error limit of quality 0, i.e. anything goes.
	MaxMSE = 1e20
)

// ErrInvalidRange is returned by ParseRange for malformed input.
var ErrInvalidRange = errors.New("invalid quality range")

// ToMSE returns the largest mean error that still counts as quality q.
// Quality 100 allows no error at all. In between, the curve is fudged to
// feel roughly like libjpeg quality numbers.
func ToMSE(q int) float64 {
	if q <= Min {
		return MaxMSE
	}
	if q >= Max {
		return 0
	}
	return 1.1 / math.Pow(210+float64(q), 1.2) * (100.1 - float64(q)) / 100
}

// FromMSE returns the highest quality whose limit mse satisfies.
// Uses binary search since ToMSE decreases monotonically.
func FromMSE(mse float64) int {
	low, high := Min, Max
	for low < high {
		mid := (low + high + 1) / 2
		if mse <= ToMSE(mid) {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low
}

// Range is a [Min, Max] quality pair: results below Min are rejected and
// no colors are spent beyond what Max requires.
type Range struct {
	Min int
	Max int
}

// Full accepts any result and aims for perfect.
var Full = Range{Min: Min, Max: Max}

// ParseRange reads a quality range in one of the forms
//
//	N    aim for N, accept down to 90% of N
//	-N   no better than N (same as 0-N)
//	N-   no worse than N, perfect if possible (same as N-100)
//	N-M  no worse than N, no better than M
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, fmt.Errorf("%w: empty", ErrInvalidRange)
	}

	var r Range
	var err error
	switch i := strings.Index(s[1:], "-"); {
	case strings.HasPrefix(s, "-"):
		r.Max, err = strconv.Atoi(s[1:])
	case i < 0:
		r.Max, err = strconv.Atoi(s)
		r.Min = r.Max * 9 / 10
	case i+2 == len(s):
		r.Min, err = strconv.Atoi(s[:i+1])
		r.Max = Max
	default:
		r.Min, err = strconv.Atoi(s[:i+1])
		if err == nil {
			r.Max, err = strconv.Atoi(s[i+2:])
		}
	}
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	if r.Min < Min || r.Max > Max || r.Min > r.Max {
		return Range{}, fmt.Errorf("%w: %q not within %d-%d", ErrInvalidRange, s, Min, Max)
	}
	return r, nil
}

// String formats r so that ParseRange reads it back.
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

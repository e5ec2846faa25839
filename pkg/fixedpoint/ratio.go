package fixedpoint

import (
	"fmt"
	"strconv"
	"strings"
)

// Ratio is a signed fixed-point number. Slippage is the only place a negative
// quantity is meaningful, so the sign lives here rather than on Value.
type Ratio struct {
	neg bool
	mag Value
}

// Delta returns the signed difference a - b.
func (a Value) Delta(b Value) Ratio {
	if a.Cmp(b) >= 0 {
		mag, _ := a.Sub(b)
		return Ratio{mag: mag}
	}

	mag, _ := b.Sub(a)
	return Ratio{neg: true, mag: mag}
}

// NewRatio builds a ratio from a magnitude and a sign. Negative zero collapses to zero.
func NewRatio(mag Value, negative bool) Ratio {
	return Ratio{neg: negative && !mag.IsZero(), mag: mag}
}

// IsNegative reports whether r < 0.
func (r Ratio) IsNegative() bool {
	return r.neg
}

// IsZero reports whether r == 0.
func (r Ratio) IsZero() bool {
	return r.mag.IsZero()
}

// Abs returns |r|.
func (r Ratio) Abs() Value {
	return r.mag
}

// LessOrEqual reports whether r <= limit.
func (r Ratio) LessOrEqual(limit Value) bool {
	if r.neg {
		return true
	}
	return r.mag.Cmp(limit) <= 0
}

// Cmp compares two ratios and returns -1, 0 or +1.
func (r Ratio) Cmp(o Ratio) int {
	switch {
	case r.neg && !o.neg:
		return -1
	case !r.neg && o.neg:
		return 1
	case r.neg:
		return o.mag.Cmp(r.mag)
	default:
		return r.mag.Cmp(o.mag)
	}
}

// String renders the ratio as a signed decimal.
func (r Ratio) String() string {
	if r.neg {
		return "-" + r.mag.String()
	}
	return r.mag.String()
}

// Float64 approximates r for metric export.
func (r Ratio) Float64() float64 {
	f, _ := strconv.ParseFloat(r.String(), 64)
	return f
}

// ParseRatio reads a signed decimal string.
func ParseRatio(s string) (Ratio, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")

	mag, err := Parse(strings.TrimPrefix(s, "-"))
	if err != nil {
		return Ratio{}, fmt.Errorf("parse ratio: %w", err)
	}

	return NewRatio(mag, neg), nil
}

// MarshalText encodes the ratio as its signed decimal string.
func (r Ratio) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a signed decimal string.
func (r *Ratio) UnmarshalText(text []byte) error {
	v, err := ParseRatio(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Package fixedpoint implements the scaled-integer arithmetic used for every
// amount, price and valuation in the simulator. Values are unsigned 256-bit
// integers over an implicit scale of 1e18, the same representation the
// underlying token contracts use.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits carried by a Value.
const Decimals = 18

var (
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("fixed-point underflow")

	// ErrOverflow is returned when a result does not fit in 256 bits.
	ErrOverflow = errors.New("fixed-point overflow")

	// ErrDivisionByZero is returned when dividing by a zero Value.
	ErrDivisionByZero = errors.New("fixed-point division by zero")
)

//nolint:gochecknoglobals // immutable scale constant
var scale = uint256.NewInt(1_000_000_000_000_000_000)

// Value is a non-negative fixed-point number with 18 decimals.
// The zero value is 0 and ready to use.
type Value struct {
	v uint256.Int
}

// Zero returns 0.
func Zero() Value {
	return Value{}
}

// One returns 1.0.
func One() Value {
	var out Value
	out.v.Set(scale)
	return out
}

// FromUnits returns n whole units (n * 1e18 raw).
func FromUnits(n uint64) Value {
	var out Value
	out.v.Mul(uint256.NewInt(n), scale)
	return out
}

// FromRaw wraps an already scaled integer, as returned by a contract call.
func FromRaw(raw *big.Int) (Value, error) {
	if raw == nil {
		return Value{}, nil
	}
	if raw.Sign() < 0 {
		return Value{}, fmt.Errorf("negative raw value %s: %w", raw.String(), ErrUnderflow)
	}

	v, overflow := uint256.FromBig(raw)
	if overflow {
		return Value{}, fmt.Errorf("raw value %s: %w", raw.String(), ErrOverflow)
	}

	return Value{v: *v}, nil
}

// FromRawUint64 wraps a small scaled integer.
func FromRawUint64(raw uint64) Value {
	var out Value
	out.v.SetUint64(raw)
	return out
}

// Parse reads a plain decimal string such as "100", "0.005" or "1.000000000000000001".
func Parse(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, errors.New("parse fixed-point: empty string")
	}
	if strings.HasPrefix(s, "-") {
		return Value{}, fmt.Errorf("parse fixed-point %q: negative values not allowed", s)
	}
	s = strings.TrimPrefix(s, "+")

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if hasDot && fracPart == "" {
		return Value{}, fmt.Errorf("parse fixed-point %q: missing fractional digits", s)
	}
	if len(fracPart) > Decimals {
		return Value{}, fmt.Errorf("parse fixed-point %q: more than %d decimals", s, Decimals)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return Value{}, fmt.Errorf("parse fixed-point %q: invalid digits", s)
	}

	whole, err := uint256.FromDecimal(trimLeadingZeros(intPart))
	if err != nil {
		return Value{}, fmt.Errorf("parse fixed-point %q: %w", s, err)
	}

	var out Value
	if _, overflow := out.v.MulOverflow(whole, scale); overflow {
		return Value{}, fmt.Errorf("parse fixed-point %q: %w", s, ErrOverflow)
	}

	if fracPart != "" {
		frac, err := uint256.FromDecimal(trimLeadingZeros(fracPart + strings.Repeat("0", Decimals-len(fracPart))))
		if err != nil {
			return Value{}, fmt.Errorf("parse fixed-point %q: %w", s, err)
		}
		if _, overflow := out.v.AddOverflow(&out.v, frac); overflow {
			return Value{}, fmt.Errorf("parse fixed-point %q: %w", s, ErrOverflow)
		}
	}

	return out, nil
}

// MustParse is Parse for constants and tests. It panics on malformed input.
func MustParse(s string) Value {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func trimLeadingZeros(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Add returns a + b.
func (a Value) Add(b Value) (Value, error) {
	var out Value
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Value{}, fmt.Errorf("add %s + %s: %w", a, b, ErrOverflow)
	}
	return out, nil
}

// Sub returns a - b and fails with ErrUnderflow when b > a.
func (a Value) Sub(b Value) (Value, error) {
	var out Value
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Value{}, fmt.Errorf("sub %s - %s: %w", a, b, ErrUnderflow)
	}
	return out, nil
}

// Mul returns a * b rescaled to 18 decimals, truncating toward zero.
// a.Mul(b).Quo(b) == a holds when b is a whole number; a fractional b can
// drop the lowest digits of a.
func (a Value) Mul(b Value) (Value, error) {
	var out Value
	if _, overflow := out.v.MulDivOverflow(&a.v, &b.v, scale); overflow {
		return Value{}, fmt.Errorf("mul %s * %s: %w", a, b, ErrOverflow)
	}
	return out, nil
}

// Quo returns a / b rescaled to 18 decimals, truncating toward zero.
// It undoes Mul exactly only for whole-number factors.
func (a Value) Quo(b Value) (Value, error) {
	if b.v.IsZero() {
		return Value{}, fmt.Errorf("quo %s / 0: %w", a, ErrDivisionByZero)
	}

	var out Value
	if _, overflow := out.v.MulDivOverflow(&a.v, scale, &b.v); overflow {
		return Value{}, fmt.Errorf("quo %s / %s: %w", a, b, ErrOverflow)
	}
	return out, nil
}

// MulUint64 scales a by an integer factor without rescaling.
func (a Value) MulUint64(k uint64) (Value, error) {
	var out Value
	if _, overflow := out.v.MulOverflow(&a.v, uint256.NewInt(k)); overflow {
		return Value{}, fmt.Errorf("mul %s * %d: %w", a, k, ErrOverflow)
	}
	return out, nil
}

// QuoUint64 divides a by an integer factor, truncating toward zero.
func (a Value) QuoUint64(k uint64) (Value, error) {
	if k == 0 {
		return Value{}, fmt.Errorf("quo %s / 0: %w", a, ErrDivisionByZero)
	}

	var out Value
	out.v.Div(&a.v, uint256.NewInt(k))
	return out, nil
}

// MulDiv returns a * b / c with a 512-bit intermediate. It is the pro-rata
// primitive: the share of b that a represents out of c.
func MulDiv(a, b, c Value) (Value, error) {
	if c.v.IsZero() {
		return Value{}, fmt.Errorf("muldiv %s * %s / 0: %w", a, b, ErrDivisionByZero)
	}

	var out Value
	if _, overflow := out.v.MulDivOverflow(&a.v, &b.v, &c.v); overflow {
		return Value{}, fmt.Errorf("muldiv %s * %s / %s: %w", a, b, c, ErrOverflow)
	}
	return out, nil
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Value) Cmp(b Value) int {
	return a.v.Cmp(&b.v)
}

// IsZero reports whether a == 0.
func (a Value) IsZero() bool {
	return a.v.IsZero()
}

// Equal reports whether a == b.
func (a Value) Equal(b Value) bool {
	return a.v.Eq(&b.v)
}

// Raw returns the scaled integer numerator.
func (a Value) Raw() *big.Int {
	return a.v.ToBig()
}

// String renders the canonical decimal form with trailing zeros trimmed.
func (a Value) String() string {
	var whole, frac uint256.Int
	whole.Div(&a.v, scale)
	frac.Mod(&a.v, scale)

	if frac.IsZero() {
		return whole.Dec()
	}

	digits := frac.Dec()
	digits = strings.Repeat("0", Decimals-len(digits)) + digits
	digits = strings.TrimRight(digits, "0")

	return whole.Dec() + "." + digits
}

// Float64 approximates a for metric export. Never use it in arithmetic.
func (a Value) Float64() float64 {
	f, _ := strconv.ParseFloat(a.String(), 64)
	return f
}

// MarshalText encodes the value as its decimal string.
func (a Value) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a decimal string.
func (a *Value) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "100", want: "100"},
		{name: "fraction", input: "0.005", want: "0.005"},
		{name: "leading-dot", input: ".5", want: "0.5"},
		{name: "full-precision", input: "1.000000000000000001", want: "1.000000000000000001"},
		{name: "trailing-zeros-trimmed", input: "2.500", want: "2.5"},
		{name: "leading-zeros", input: "007.0100", want: "7.01"},
		{name: "zero", input: "0", want: "0"},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "too-many-decimals", input: "0.0000000000000000001", wantErr: true},
		{name: "garbage", input: "1.2x", wantErr: true},
		{name: "dangling-dot", input: "3.", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestFromUnits(t *testing.T) {
	v := FromUnits(100)
	assert.Equal(t, "100", v.String())
	assert.Equal(t, "100000000000000000000", v.Raw().String())
}

func TestFromRaw(t *testing.T) {
	v, err := FromRaw(big.NewInt(1_500_000_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, "1.5", v.String())

	_, err = FromRaw(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrUnderflow)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = FromRaw(tooBig)
	assert.ErrorIs(t, err, ErrOverflow)

	v, err = FromRaw(nil)
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestAddSub(t *testing.T) {
	a := MustParse("1.25")
	b := MustParse("0.75")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "2", sum.String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "0.5", diff.String())

	_, err = b.Sub(a)
	assert.ErrorIs(t, err, ErrUnderflow)

	zero, err := a.Sub(a)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestAdd_Overflow(t *testing.T) {
	maxRaw := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	max, err := FromRaw(maxRaw)
	require.NoError(t, err)

	_, err = max.Add(FromRawUint64(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMulQuo(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		mul  string
		quo  string
	}{
		{name: "whole", a: "100", b: "2", mul: "200", quo: "50"},
		{name: "half-price", a: "100", b: "0.5", mul: "50", quo: "200"},
		{name: "virtual-price", a: "1.0203", b: "1.01", mul: "1.030503", quo: "1.010198019801980198"},
		{name: "input-over-output", a: "100", b: "99", mul: "9900", quo: "1.010101010101010101"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a := MustParse(tt.a)
			b := MustParse(tt.b)

			mul, err := a.Mul(b)
			require.NoError(t, err)
			assert.Equal(t, tt.mul, mul.String())

			quo, err := a.Quo(b)
			require.NoError(t, err)
			assert.Equal(t, tt.quo, quo.String())
		})
	}
}

func TestQuo_DivisionByZero(t *testing.T) {
	_, err := One().Quo(Zero())
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = One().QuoUint64(0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = MulDiv(One(), One(), Zero())
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMul_Overflow(t *testing.T) {
	huge := MustParse("100000000000000000000000000000000000000000")
	_, err := huge.Mul(huge)
	assert.ErrorIs(t, err, ErrOverflow)
}

// Multiplying then dividing by the same whole-number factor must give the
// original value back exactly.
func TestMulQuo_RoundTrip(t *testing.T) {
	values := []string{"0", "0.000000000000000001", "1", "3.141592653589793238", "100000000", "123456789.987654321"}
	units := []uint64{1, 2, 3, 7, 35, 1000, 1_000_000}

	for _, s := range values {
		v := MustParse(s)
		for _, k := range units {
			scaled, err := v.MulUint64(k)
			require.NoError(t, err)
			back, err := scaled.QuoUint64(k)
			require.NoError(t, err)
			assert.True(t, back.Equal(v), "integer factor %d on %s gave %s", k, s, back)

			factor := FromUnits(k)
			product, err := v.Mul(factor)
			require.NoError(t, err)
			restored, err := product.Quo(factor)
			require.NoError(t, err)
			assert.True(t, restored.Equal(v), "fixed-point factor %d on %s gave %s", k, s, restored)
		}
	}
}

func TestMulQuo_FractionalFactorTruncates(t *testing.T) {
	half := MustParse("0.5")

	tests := []struct {
		in      string
		product string
		back    string
	}{
		{in: "0.000000000000000001", product: "0", back: "0"},
		{in: "0.000000000000000003", product: "0.000000000000000001", back: "0.000000000000000002"},
		{in: "3", product: "1.5", back: "3"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			product, err := MustParse(tt.in).Mul(half)
			require.NoError(t, err)
			assert.Equal(t, tt.product, product.String())

			back, err := product.Quo(half)
			require.NoError(t, err)
			assert.Equal(t, tt.back, back.String())
		})
	}
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(MustParse("50"), MustParse("300"), MustParse("100"))
	require.NoError(t, err)
	assert.Equal(t, "150", got.String())
}

func TestCmp(t *testing.T) {
	a := MustParse("1.1")
	b := MustParse("1.2")
	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(MustParse("1.10")))
}

func TestTextMarshalling(t *testing.T) {
	v := MustParse("42.125")
	text, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "42.125", string(text))

	var decoded Value
	require.NoError(t, decoded.UnmarshalText(text))
	assert.True(t, decoded.Equal(v))

	assert.Error(t, decoded.UnmarshalText([]byte("nope")))
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("-5") })
}

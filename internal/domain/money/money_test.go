package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := Parse("350000.00")
	require.NoError(t, err)
	assert.Equal(t, VND(350000), v)

	v, err = Parse(" 1200.5 ")
	require.NoError(t, err)
	assert.Equal(t, VND(1201), v)

	_, err = Parse("abc")
	require.Error(t, err)
}

func TestFromDecimal(t *testing.T) {
	assert.Equal(t, VND(30000), FromDecimal(decimal.RequireFromString("29999.5")))
	assert.Equal(t, VND(0), FromDecimal(decimal.Zero))
}

func TestString(t *testing.T) {
	tests := []struct {
		in   VND
		want string
	}{
		{0, "0 ₫"},
		{999, "999 ₫"},
		{1000, "1.000 ₫"},
		{100000, "100.000 ₫"},
		{1234567, "1.234.567 ₫"},
		{-50000, "-50.000 ₫"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
	}
}

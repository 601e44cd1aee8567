// Package money holds the storefront's currency type. Prices are Vietnamese
// đồng, which have no minor unit, so amounts are whole integers.
package money

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// VND is an amount of Vietnamese đồng.
type VND int64

// FromDecimal converts an upstream amount to VND, rounding half away from zero.
func FromDecimal(d decimal.Decimal) VND {
	return VND(d.Round(0).IntPart())
}

// Parse converts a decimal string such as "350000" or "350000.00" to VND.
func Parse(s string) (VND, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "parse amount %q", s)
	}
	return FromDecimal(d), nil
}

// Mul returns the amount multiplied by n.
func (v VND) Mul(n int) VND {
	return v * VND(n)
}

// Decimal returns the amount as a decimal.
func (v VND) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

// String formats the amount the way vi-VN does: dot thousands separators
// followed by the currency sign, e.g. "100.000 ₫".
func (v VND) String() string {
	n := int64(v)
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	b.WriteString(" ₫")
	return b.String()
}

package upstream

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/hcbookstore/storefront/internal/domain/money"
)

// fieldKey folds a JSON key so that PascalCase and camelCase spellings of
// the same field match, e.g. "ProvinceID" and "provinceId".
func fieldKey(key []byte) string {
	return strings.ToLower(string(key))
}

func readString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		return string(n), err
	case jx.Bool:
		b, err := d.Bool()
		return strconv.FormatBool(b), err
	default:
		return "", errors.Errorf("unexpected %s, expected string", d.Next())
	}
}

func readInt64(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return d.Int64()
	}
}

func readInt(d *jx.Decoder) (int, error) {
	v, err := readInt64(d)
	return int(v), err
}

func readBool(d *jx.Decoder) (bool, error) {
	if d.Next() == jx.Null {
		return false, d.Null()
	}
	return d.Bool()
}

// readVND reads an amount given as a JSON number or numeric string.
func readVND(d *jx.Decoder) (money.VND, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil || s == "" {
			return 0, err
		}
		return money.Parse(s)
	default:
		n, err := d.Num()
		if err != nil {
			return 0, err
		}
		v, err := decimal.NewFromString(string(n))
		if err != nil {
			return 0, errors.Wrap(err, "parse amount")
		}
		return money.FromDecimal(v), nil
	}
}

func readStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := readString(d)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// readArray decodes a JSON array, tolerating null, with fn called per element.
func readArray(d *jx.Decoder, fn func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Arr(fn)
}

// readObject decodes a JSON object with case-folded keys, tolerating null.
func readObject(d *jx.Decoder, fn func(d *jx.Decoder, key string) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, fieldKey(key))
	})
}

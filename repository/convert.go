package repository

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/shopspring/decimal"
)

// Transform rebuilds a document tree, applying leaf to every value that is
// not a mapping or a sequence. Any slice (other than []byte) comes back as
// []any and any string keyed map as map[string]any; keys and nesting are kept.
func Transform(v any, leaf func(any) any) any {
	switch t := v.(type) {
	case nil:
		return leaf(nil)
	case Record:
		return Record(transformMap(t, leaf))
	case map[string]any:
		return transformMap(t, leaf)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Transform(item, leaf)
		}
		return out
	case []byte:
		return leaf(t)
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Transform(rv.Index(i).Interface(), leaf)
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return leaf(v)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Transform(iter.Value().Interface(), leaf)
		}
		return out
	}

	return leaf(v)
}

func transformMap(m map[string]any, leaf func(any) any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Transform(v, leaf)
	}
	return out
}

// ToDecimal replaces every float leaf with an exact decimal.Decimal.
func ToDecimal(v any) any {
	return Transform(v, DecimalLeaf)
}

// FromDecimal replaces every decimal.Decimal leaf with an int64 when the value
// is an exact integer that fits, otherwise with a float64.
func FromDecimal(v any) any {
	return Transform(v, NumberLeaf)
}

// DecimalLeaf goes through the shortest decimal string of the float so the
// stored value is the one a reader of the float would write down.
func DecimalLeaf(v any) any {
	switch f := v.(type) {
	case float64:
		return floatToDecimal(f, 64)
	case float32:
		return floatToDecimal(float64(f), 32)
	}
	return v
}

func NumberLeaf(v any) any {
	d, ok := v.(decimal.Decimal)
	if !ok {
		return v
	}
	if d.IsInteger() {
		i := d.IntPart()
		if decimal.NewFromInt(i).Equal(d) {
			return i
		}
	}
	f, _ := d.Float64()
	return f
}

func floatToDecimal(f float64, bits int) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	d, err := decimal.NewFromString(strconv.FormatFloat(f, 'f', -1, bits))
	if err != nil {
		return decimal.NewFromFloat(f)
	}
	return d
}

// ToDecimalRecord converts a record for storage. NaN and infinities have no
// decimal form and are rejected.
func ToDecimalRecord(r Record) (Record, error) {
	var bad error
	out := Transform(r, func(v any) any {
		switch f := v.(type) {
		case float64:
			if bad == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
				bad = fmt.Errorf("non-finite number %v has no decimal form", f)
			}
		case float32:
			if bad == nil && (math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)) {
				bad = fmt.Errorf("non-finite number %v has no decimal form", f)
			}
		}
		return DecimalLeaf(v)
	})
	if bad != nil {
		return nil, bad
	}
	return out.(Record), nil
}

func FromDecimalRecord(r Record) Record {
	return FromDecimal(r).(Record)
}

// NumberFromString parses a stored number into a decimal.Decimal leaf.
func NumberFromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse number %q: %w", s, err)
	}
	return d, nil
}

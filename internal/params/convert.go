package params

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Raw criteria data arrives either from encoding/json with UseNumber
// (json.Number) or from Go literals. These helpers accept both.

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	}
	if i, ok := asInt64(v); ok {
		return decimal.NewFromInt(i), true
	}
	return decimal.Decimal{}, false
}

func asDateTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func asStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

// asInt64s returns ok=false when v is not a list. bad is the index of the
// first element that is not an integer, or -1.
func asInt64s(v any) (out []int64, bad int, ok bool) {
	switch s := v.(type) {
	case []int64:
		return s, -1, true
	case []int:
		out = make([]int64, 0, len(s))
		for _, n := range s {
			out = append(out, int64(n))
		}
		return out, -1, true
	case []any:
		out = make([]int64, 0, len(s))
		for i, item := range s {
			n, isInt := asInt64(item)
			if !isInt {
				return nil, i, true
			}
			out = append(out, n)
		}
		return out, -1, true
	}
	return nil, -1, false
}

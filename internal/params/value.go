package params

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a sealed interface over bound param payloads.
// Only String, Number, Decimal, Boolean, DateTime, StringArray and
// NumberArray implement it.
type Value interface {
	Type() Type

	// Equal reports whether two values carry the same payload.
	// Arrays compare as sorted sets. A different concrete kind is an
	// error, never false.
	Equal(other Value) (bool, error)

	paramValue() // Sealed
}

// String is a bound string param.
type String string

// Number is a bound integer param.
type Number int64

// Decimal is a bound decimal param.
type Decimal struct {
	Amount decimal.Decimal
}

// Boolean is a bound boolean param.
type Boolean bool

// DateTime is a bound datetime param.
type DateTime struct {
	Time time.Time
}

// StringArray is a bound string_array param.
// Options is nil when the param accepts any value.
type StringArray struct {
	Values  []string
	Options map[string]string
}

// NumberArray is a bound number_array param.
// Options maps accepted numbers to labels; nil accepts any number.
type NumberArray struct {
	Values  []int64
	Options map[int64]string
}

func (String) paramValue()      {}
func (Number) paramValue()      {}
func (Decimal) paramValue()     {}
func (Boolean) paramValue()     {}
func (DateTime) paramValue()    {}
func (StringArray) paramValue() {}
func (NumberArray) paramValue() {}

func (String) Type() Type      { return TypeString }
func (Number) Type() Type      { return TypeNumber }
func (Decimal) Type() Type     { return TypeDecimal }
func (Boolean) Type() Type     { return TypeBoolean }
func (DateTime) Type() Type    { return TypeDateTime }
func (StringArray) Type() Type { return TypeStringArray }
func (NumberArray) Type() Type { return TypeNumberArray }

func (v String) Equal(other Value) (bool, error) {
	o, ok := other.(String)
	if !ok {
		return false, mismatch(v, other)
	}
	return v == o, nil
}

func (v Number) Equal(other Value) (bool, error) {
	o, ok := other.(Number)
	if !ok {
		return false, mismatch(v, other)
	}
	return v == o, nil
}

func (v Decimal) Equal(other Value) (bool, error) {
	o, ok := other.(Decimal)
	if !ok {
		return false, mismatch(v, other)
	}
	return v.Amount.Equal(o.Amount), nil
}

func (v Boolean) Equal(other Value) (bool, error) {
	o, ok := other.(Boolean)
	if !ok {
		return false, mismatch(v, other)
	}
	return v == o, nil
}

func (v DateTime) Equal(other Value) (bool, error) {
	o, ok := other.(DateTime)
	if !ok {
		return false, mismatch(v, other)
	}
	return v.Time.Equal(o.Time), nil
}

func (v StringArray) Equal(other Value) (bool, error) {
	o, ok := other.(StringArray)
	if !ok {
		return false, mismatch(v, other)
	}
	return slices.Equal(v.Sorted(), o.Sorted()), nil
}

func (v NumberArray) Equal(other Value) (bool, error) {
	o, ok := other.(NumberArray)
	if !ok {
		return false, mismatch(v, other)
	}
	return slices.Equal(v.Sorted(), o.Sorted()), nil
}

func mismatch(v, other Value) error {
	got := Type("nil")
	if other != nil {
		got = other.Type()
	}
	return &TypeMismatchError{Want: v.Type(), Got: got}
}

// Sorted returns a sorted copy of the values.
func (v StringArray) Sorted() []string {
	out := slices.Clone(v.Values)
	slices.Sort(out)
	return out
}

// EscapedString renders the values as a SQL literal list joined by glue.
// When options are set, values outside the options are dropped.
func (v StringArray) EscapedString(glue string) string {
	out := make([]string, 0, len(v.Values))
	for _, s := range v.Values {
		if v.Options != nil {
			if _, ok := v.Options[s]; !ok {
				continue
			}
		}
		out = append(out, Quote(s))
	}
	return strings.Join(out, glue)
}

// Title renders the values for human-readable names.
func (v StringArray) Title(glue string) string {
	return strings.Join(v.Values, glue)
}

// Sorted returns a sorted copy of the values.
func (v NumberArray) Sorted() []int64 {
	out := slices.Clone(v.Values)
	slices.Sort(out)
	return out
}

// EscapedString renders the values as a bare SQL number list joined by glue.
// When options are set, values outside the options are dropped.
func (v NumberArray) EscapedString(glue string) string {
	out := make([]string, 0, len(v.Values))
	for _, n := range v.Values {
		if v.Options != nil {
			if _, ok := v.Options[n]; !ok {
				continue
			}
		}
		out = append(out, strconv.FormatInt(n, 10))
	}
	return strings.Join(out, glue)
}

// Title renders option labels (or bare numbers without options) joined by glue.
func (v NumberArray) Title(glue string) string {
	out := make([]string, 0, len(v.Values))
	for _, n := range v.Values {
		if v.Options == nil {
			out = append(out, strconv.FormatInt(n, 10))
			continue
		}
		if label, ok := v.Options[n]; ok {
			out = append(out, label)
		}
	}
	return strings.Join(out, glue)
}

// Quote renders s as a single-quoted SQL string literal.
// Quotes are doubled and backslashes escaped so the literal is safe on
// both standard-conforming and MySQL-style string parsers.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return "'" + s + "'"
}

package params

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayEqualIgnoresOrder(t *testing.T) {
	a := StringArray{Values: []string{"b", "a"}}
	b := StringArray{Values: []string{"a", "b"}}

	eq, err := a.Equal(b)
	require.NoError(t, err)
	assert.True(t, eq)

	// Original slice untouched by sorting
	assert.Equal(t, []string{"b", "a"}, a.Values)
}

func TestStringArrayNotEqual(t *testing.T) {
	a := StringArray{Values: []string{"a", "b"}}
	b := StringArray{Values: []string{"a", "c"}}

	eq, err := a.Equal(b)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestEqualDifferentKindsFails(t *testing.T) {
	tests := []struct {
		name  string
		left  Value
		right Value
	}{
		{"string array vs number array", StringArray{Values: []string{"1"}}, NumberArray{Values: []int64{1}}},
		{"number vs decimal", Number(1), Decimal{Amount: decimal.NewFromInt(1)}},
		{"string vs boolean", String("true"), Boolean(true)},
		{"datetime vs nil", DateTime{Time: time.Now()}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.left.Equal(tt.right)
			require.Error(t, err)
			assert.True(t, IsTypeMismatch(err))
		})
	}
}

func TestScalarEqual(t *testing.T) {
	d1 := Decimal{Amount: decimal.RequireFromString("1.50")}
	d2 := Decimal{Amount: decimal.RequireFromString("1.5")}
	eq, err := d1.Equal(d2)
	require.NoError(t, err)
	assert.True(t, eq)

	t1 := DateTime{Time: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	t2 := DateTime{Time: time.Date(2024, 1, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))}
	eq, err = t1.Equal(t2)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Number(3).Equal(Number(4))
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestNumberArrayEqualIgnoresOrder(t *testing.T) {
	eq, err := NumberArray{Values: []int64{3, 1, 2}}.Equal(NumberArray{Values: []int64{1, 2, 3}})
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestStringArrayEscapedString(t *testing.T) {
	v := StringArray{Values: []string{"a", "O'Brien", `back\slash`}}
	assert.Equal(t, `'a','O''Brien','back\\slash'`, v.EscapedString(","))
}

func TestStringArrayEscapedStringFiltersOptions(t *testing.T) {
	v := StringArray{
		Values:  []string{"web", "mobile"},
		Options: map[string]string{"web": "Web"},
	}
	assert.Equal(t, "'web'", v.EscapedString(", "))
}

func TestNumberArrayEscapedStringAndTitle(t *testing.T) {
	v := NumberArray{Values: []int64{2, 7}}
	assert.Equal(t, "2,7", v.EscapedString(","))
	assert.Equal(t, "2, 7", v.Title(", "))

	labelled := NumberArray{
		Values:  []int64{1, 2, 9},
		Options: map[int64]string{1: "Monthly", 2: "Yearly"},
	}
	assert.Equal(t, "1,2", labelled.EscapedString(","))
	assert.Equal(t, "Monthly or Yearly", labelled.Title(" or "))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'plain'", Quote("plain"))
	assert.Equal(t, "'it''s'", Quote("it's"))
	assert.Equal(t, `'\\'' OR 1=1'`, Quote(`\' OR 1=1`))
}

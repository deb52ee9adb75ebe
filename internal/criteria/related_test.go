package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remp2020/crm-segment-module/internal/params"
)

func TestIsRelated(t *testing.T) {
	input := []Leaf{
		{Criterion: "source", Param: "source", Value: params.StringArray{Values: []string{"b", "a"}}},
	}

	tests := []struct {
		name      string
		candidate []Leaf
		want      bool
	}{
		{
			name: "same values different order",
			candidate: []Leaf{
				{Criterion: "active", Param: "active", Value: params.Boolean(true)},
				{Criterion: "source", Param: "source", Value: params.StringArray{Values: []string{"a", "b"}}},
			},
			want: true,
		},
		{
			name: "different values",
			candidate: []Leaf{
				{Criterion: "source", Param: "source", Value: params.StringArray{Values: []string{"a"}}},
			},
			want: false,
		},
		{
			name: "different criterion same param key",
			candidate: []Leaf{
				{Criterion: "origin", Param: "source", Value: params.StringArray{Values: []string{"a", "b"}}},
			},
			want: false,
		},
		{
			name: "different kind",
			candidate: []Leaf{
				{Criterion: "source", Param: "source", Value: params.NumberArray{Values: []int64{1}}},
			},
			want: false,
		},
		{
			name:      "empty candidate",
			candidate: nil,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsRelated(input, tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRelatedEmptyInput(t *testing.T) {
	got, err := IsRelated(nil, []Leaf{{Criterion: "a", Param: "a", Value: params.Number(1)}})
	require.NoError(t, err)
	assert.True(t, got)
}

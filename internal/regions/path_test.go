package regions

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathData(t *testing.T) {
	tests := []struct {
		name string
		d    string
		want [][]orb.Point
	}{
		{
			name: "absolute",
			d:    "M10 20 L30 40 H50 V60 Z",
			want: [][]orb.Point{{{10, 20}, {30, 40}, {50, 40}, {50, 60}}},
		},
		{
			name: "relative subpaths",
			d:    "m10 10 l5 0 0 5 z m20 0 h5 v5",
			want: [][]orb.Point{
				{{10, 10}, {15, 10}, {15, 15}},
				{{30, 10}, {35, 10}, {35, 15}},
			},
		},
		{
			name: "implicit lineto",
			d:    "M0 0 10 0 10 10",
			want: [][]orb.Point{{{0, 0}, {10, 0}, {10, 10}}},
		},
		{
			name: "curve end points",
			d:    "M0 0 C1 1 2 2 10 0 Q5 5 10 10 a5 5 0 0110 20",
			want: [][]orb.Point{{{0, 0}, {10, 0}, {10, 10}, {20, 30}}},
		},
		{
			name: "compact numbers",
			d:    "M1-2L3.5.5l1e2,0",
			want: [][]orb.Point{{{1, -2}, {3.5, 0.5}, {103.5, 0.5}}},
		},
		{
			name: "draw after close",
			d:    "M0 0 L10 0 L10 10 Z L0 10 L5 5",
			want: [][]orb.Point{
				{{0, 0}, {10, 0}, {10, 10}},
				{{0, 0}, {0, 10}, {5, 5}},
			},
		},
		{
			name: "empty",
			d:    "  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePathData(tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePathDataInvalid(t *testing.T) {
	for _, d := range []string{
		"M10",
		"X0 0",
		"M0 0 Lx",
		"M0 0 A5 5 0 2 0 1 1",
	} {
		_, err := ParsePathData(d)
		assert.Error(t, err, d)
	}
}

func TestParsePoints(t *testing.T) {
	pts, err := ParsePoints("0,0 10,0\n10,10")
	require.NoError(t, err)
	assert.Equal(t, []orb.Point{{0, 0}, {10, 0}, {10, 10}}, pts)

	_, err = ParsePoints("0,0 10")
	assert.Error(t, err)

	_, err = ParsePoints("0,0 x")
	assert.Error(t, err)
}

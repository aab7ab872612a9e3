package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShape(t *testing.T) {
	for _, size := range []int{3, 5, 7, 9} {
		points := Generate(26.4615, -80.0728, 5, size)
		require.Len(t, points, size*size)

		var northLat float64
		var southLat float64
		first := true
		for _, p := range points {
			if p.Row == 0 {
				if first {
					northLat = p.Lat
					first = false
				} else {
					assert.InDelta(t, northLat, p.Lat, 1e-6, "row 0 should share north latitude")
				}
			}
			if p.Row == size-1 {
				southLat = p.Lat
			}
		}

		expectedSpan := (2 * 5.0) / MilesPerDegreeLat
		assert.InDelta(t, expectedSpan, northLat-southLat, 1e-6)
	}
}

func TestGenerateWestEdgeShared(t *testing.T) {
	points := Generate(26.4615, -80.0728, 3, 3)
	var westLng float64
	for _, p := range points {
		if p.Col == 0 {
			if westLng == 0 {
				westLng = p.Lng
			}
			assert.InDelta(t, westLng, p.Lng, 1e-6)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(40.7128, -74.0060, 2, 5)
	b := Generate(40.7128, -74.0060, 2, 5)
	assert.Equal(t, a, b)
}

func TestGenerateRounding(t *testing.T) {
	points := Generate(26.4615, -80.0728, 1, 3)
	for _, p := range points {
		assert.Equal(t, math.Round(p.Lat*1e7)/1e7, p.Lat)
		assert.Equal(t, math.Round(p.Lng*1e7)/1e7, p.Lng)
	}
}

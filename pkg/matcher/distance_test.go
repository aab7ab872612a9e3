package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineSamePoint(t *testing.T) {
	d := HaversineMiles(26.4615, -80.0728, 26.4615, -80.0728)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestHaversineKnownDistance(t *testing.T) {
	// New York to Los Angeles is roughly 2450 miles.
	d := HaversineMiles(40.7128, -74.0060, 34.0522, -118.2437)
	assert.InDelta(t, 2450, d, 50)
}

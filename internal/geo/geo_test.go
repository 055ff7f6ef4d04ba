package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters_SamePoint(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{-12.0464, -77.0428},
		{89.9, 179.9},
		{-45.5, 13.37},
	}

	for _, p := range points {
		assert.Zero(t, DistanceMeters(p[0], p[1], p[0], p[1]))
	}
}

func TestDistanceMeters_Symmetry(t *testing.T) {
	d1 := DistanceMeters(-12.0464, -77.0428, -12.1, -77.1)
	d2 := DistanceMeters(-12.1, -77.1, -12.0464, -77.0428)

	assert.InDelta(t, d1, d2, 1e-9)
}

func TestDistanceMeters_LimaFixture(t *testing.T) {
	// 0.01 degrees of latitude is roughly 1112 m anywhere on Earth.
	d := DistanceMeters(-12.0464, -77.0428, -12.0364, -77.0428)

	assert.InEpsilon(t, 1112.0, d, 0.05)
}

func TestDistanceMeters_ScalesWithLatitude(t *testing.T) {
	// A degree of longitude shrinks with latitude; a degree of
	// latitude does not.
	atEquator := DistanceMeters(0, 0, 0, 1)
	atSixty := DistanceMeters(60, 0, 60, 1)

	assert.InEpsilon(t, atEquator/2, atSixty, 0.01)
	assert.False(t, math.IsNaN(atSixty))
}

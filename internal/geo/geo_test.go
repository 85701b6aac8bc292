package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	kyiv      = Point{Lat: 50.4501, Lng: 30.5234}
	kyivNear  = Point{Lat: 50.4502, Lng: 30.5235}
	kyivFar   = Point{Lat: 50.4600, Lng: 30.5300}
	moscow    = Point{Lat: 55.7558, Lng: 37.6173}
	southPole = Point{Lat: -90, Lng: 0}
)

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{kyiv, kyivNear},
		{kyiv, kyivFar},
		{kyiv, moscow},
		{southPole, moscow},
		{{Lat: 0, Lng: 179.9}, {Lat: 0, Lng: -179.9}},
	}
	for _, p := range pairs {
		assert.InDelta(t, Distance(p[0], p[1]), Distance(p[1], p[0]), 1e-9)
	}
}

func TestDistance_Identity(t *testing.T) {
	for _, p := range []Point{kyiv, moscow, southPole, {Lat: 0, Lng: 0}} {
		assert.Equal(t, 0.0, Distance(p, p))
	}
}

func TestDistance_KnownValues(t *testing.T) {
	// ~13 m between the two nearby Kyiv points
	near := DistanceMeters(kyiv, kyivNear)
	assert.Greater(t, near, 10.0)
	assert.Less(t, near, 16.0)

	// ~1.2 km to the far point
	far := DistanceMeters(kyiv, kyivFar)
	assert.Greater(t, far, 1000.0)
	assert.Less(t, far, 1400.0)

	// Kyiv - Moscow is roughly 755 km
	assert.InDelta(t, 755, Distance(kyiv, moscow), 10)
}

func TestDistance_Antimeridian(t *testing.T) {
	d := Distance(Point{Lat: 0, Lng: 179.9}, Point{Lat: 0, Lng: -179.9})
	assert.InDelta(t, 22.2, d, 0.2)
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	box := BoundingBox(kyiv, 0.1)
	require.True(t, box.Contains(kyiv))
	require.True(t, box.Contains(kyivNear))
	require.False(t, box.Contains(kyivFar))
}

func TestBoundingBox_Antimeridian(t *testing.T) {
	box := BoundingBox(Point{Lat: 0, Lng: 179.95}, 20)
	assert.True(t, box.Contains(Point{Lat: 0, Lng: -179.95}))
	assert.False(t, box.Contains(Point{Lat: 0, Lng: 0}))
}

func TestCell(t *testing.T) {
	assert.Equal(t, Cell(kyiv, 0.01), Cell(kyivNear, 0.01))
	assert.NotEqual(t, Cell(kyiv, 0.01), Cell(moscow, 0.01))
	assert.Equal(t, "-1:-1", Cell(Point{Lat: -0.001, Lng: -0.001}, 0.01))
}

func TestPoint_Valid(t *testing.T) {
	assert.True(t, Point{Lat: 90, Lng: 180}.Valid())
	assert.False(t, Point{Lat: 90.1, Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: -180.5}.Valid())
}

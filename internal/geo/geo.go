// Package geo holds the distance math used to decide whether two reports
// describe the same place.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKM is the mean Earth radius used by Distance.
const EarthRadiusKM = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	dLat := deg2rad(b.Lat - a.Lat)
	dLng := deg2rad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKM * c
}

// DistanceMeters is Distance scaled to meters.
func DistanceMeters(a, b Point) float64 {
	return Distance(a, b) * 1000
}

// Box is a lat/lng rectangle.
type Box struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// BoundingBox returns a box enclosing every point within radiusKM of p.
// Longitude span is clamped at the poles.
func BoundingBox(p Point, radiusKM float64) Box {
	dLat := rad2deg(radiusKM / EarthRadiusKM)
	dLng := 180.0
	if c := math.Cos(deg2rad(p.Lat)); c > 1e-9 {
		dLng = math.Min(180, rad2deg(radiusKM/(EarthRadiusKM*c)))
	}
	return Box{
		MinLat: math.Max(-90, p.Lat-dLat),
		MaxLat: math.Min(90, p.Lat+dLat),
		MinLng: p.Lng - dLng,
		MaxLng: p.Lng + dLng,
	}
}

func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if p.Lng >= b.MinLng && p.Lng <= b.MaxLng {
		return true
	}
	// box crossing the antimeridian
	return p.Lng+360 <= b.MaxLng || p.Lng-360 >= b.MinLng
}

// Cell returns the key of the grid cell of size sizeDeg containing p.
func Cell(p Point, sizeDeg float64) string {
	if sizeDeg <= 0 {
		sizeDeg = 0.01
	}
	return fmt.Sprintf("%d:%d",
		int64(math.Floor(p.Lat/sizeDeg)),
		int64(math.Floor(p.Lng/sizeDeg)),
	)
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func rad2deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

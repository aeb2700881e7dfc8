// Package geo provides the geometric primitives used by the routing engine:
// great-circle distance, bearing, and signed angle differences.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b)
}

// Bearing returns the initial bearing in degrees from a to b,
// normalized to [0, 360). 0 = north, 90 = east.
func Bearing(a, b orb.Point) float64 {
	deg := orbgeo.Bearing(a, b)
	deg = math.Mod(deg+360.0, 360.0)
	return deg
}

// Midpoint returns the geographic midpoint of a and b.
func Midpoint(a, b orb.Point) orb.Point {
	return orbgeo.Midpoint(a, b)
}

// AngleDiff returns the signed smallest difference a2-a1 in degrees,
// in the range [-180, 180].
func AngleDiff(a2, a1 float64) float64 {
	return math.Mod(a2-a1+540.0, 360.0) - 180.0
}

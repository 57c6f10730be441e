package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Meters spanned by one degree of latitude everywhere on the globe.
const MetersPerDegreeLat = 111320.0

// HaversineKm returns the great-circle distance between two coordinates in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceMeters(lat1, lon1, lat2, lon2) / 1000
}

// DistanceMeters returns the great-circle distance between two coordinates in meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return orbgeo.Distance(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// LatSpanDegrees converts a north-south span in meters to degrees of latitude.
func LatSpanDegrees(meters float64) float64 {
	return meters / MetersPerDegreeLat
}

// LonSpanDegrees converts an east-west span in meters at the given latitude to
// degrees of longitude. Near the poles the cosine correction is floored so the
// span never degenerates to zero.
func LonSpanDegrees(meters, atLat float64) float64 {
	c := math.Cos(atLat * math.Pi / 180)
	if c < 1e-6 {
		c = 1e-6
	}
	return meters / (MetersPerDegreeLat * c)
}

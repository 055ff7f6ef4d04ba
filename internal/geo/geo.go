// Package geo holds the numeric primitives every engine component
// composes: great-circle distance and geofence containment.
package geo

import "math"

const earthRadiusMeters = 6371000

// DistanceMeters returns the Haversine great-circle distance between
// two WGS84 points, in meters. Inputs are validated upstream.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

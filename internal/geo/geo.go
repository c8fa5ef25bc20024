// Package geo provides the great-circle helpers every spatial stage shares.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for all distances.
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance in kilometers.
// NaN inputs propagate to the result.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// DistanceMeters is DistanceKm scaled to meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceKm(lat1, lon1, lat2, lon2) * 1000.0
}

// Bearing returns the initial bearing from point 1 to point 2 in degrees
// [0, 360), where 0 is north and 90 is east. Identical points give 0.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lonDiff := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(lonDiff) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lonDiff)

	return math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
}

// HeadingDiff returns the smallest absolute difference between two
// headings, in [0, 180].
func HeadingDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Destination returns the point reached by travelling distanceM meters
// from (lat, lon) along bearing degrees.
func Destination(lat, lon, bearing, distanceM float64) (float64, float64) {
	p := s2.LatLngFromDegrees(lat, lon)
	brng := bearing * math.Pi / 180
	ang := distanceM / (EarthRadiusKm * 1000.0)

	latRad := p.Lat.Radians()
	lonRad := p.Lng.Radians()

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(ang) + math.Cos(latRad)*math.Sin(ang)*math.Cos(brng))
	lon2 := lonRad + math.Atan2(
		math.Sin(brng)*math.Sin(ang)*math.Cos(latRad),
		math.Cos(ang)-math.Sin(latRad)*math.Sin(lat2))

	return lat2 * 180 / math.Pi, lon2 * 180 / math.Pi
}

// PathLengthKm sums the segment distances of a polyline.
func PathLengthKm(lats, lons []float64) float64 {
	total := 0.0
	for i := 1; i < len(lats) && i < len(lons); i++ {
		total += DistanceKm(lats[i-1], lons[i-1], lats[i], lons[i])
	}
	return total
}

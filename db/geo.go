package db

import (
	"fmt"
	"math"
)

// EarthRadiusMeters matches the radius used by the earthdistance extension.
const EarthRadiusMeters = 6378168.0

// Within returns a predicate that holds when the point stored in latCol/lngCol
// lies within radiusKm of (lat, lng) along the great circle. The comparison is
// done in meters. Inputs are not range checked here.
func Within(dialect, latCol, lngCol string, lat, lng, radiusKm float64) (string, []any) {
	meters := radiusKm * 1000
	if dialect == DriverPostgres {
		point := fmt.Sprintf("ll_to_earth(%s, %s)", latCol, lngCol)
		return fmt.Sprintf(
				"earth_box(ll_to_earth(?, ?), ?) @> %s AND earth_distance(ll_to_earth(?, ?), %s) <= ?",
				point, point,
			),
			[]any{lat, lng, meters, lat, lng, meters}
	}
	return fmt.Sprintf("geo_distance(?, ?, %s, %s) <= ?", latCol, lngCol), []any{lat, lng, meters}
}

// DistanceMeters returns an expression evaluating to the great-circle distance
// in meters between (lat, lng) and the point stored in latCol/lngCol.
func DistanceMeters(dialect, latCol, lngCol string, lat, lng float64) (string, []any) {
	if dialect == DriverPostgres {
		return fmt.Sprintf("earth_distance(ll_to_earth(?, ?), ll_to_earth(%s, %s))", latCol, lngCol), []any{lat, lng}
	}
	return fmt.Sprintf("geo_distance(?, ?, %s, %s)", latCol, lngCol), []any{lat, lng}
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

package geo

import "math"

// EarthRadiusM is the mean Earth radius used by the haversine formula.
const EarthRadiusM = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push a a hair past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// HaversineKm is HaversineM in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineM(lat1, lng1, lat2, lng2) / 1000
}

// Distance is HaversineM between two points.
func Distance(a, b Point) float64 {
	return HaversineM(a.Lat, a.Lng, b.Lat, b.Lng)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

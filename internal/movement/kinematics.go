// Package movement derives speed, acceleration and driving events from
// consecutive location samples.
package movement

import (
	"math"

	"backend-carbondrive/internal/shared/geo"
)

const (
	// MinSpeedThresholdKmh is the speed below which GPS jitter is not movement.
	MinSpeedThresholdKmh = 5.0

	// BrakeThresholdMs2 is the deceleration that counts as braking.
	BrakeThresholdMs2 = -2.0

	msToKmh = 3.6
)

// Calculate derives the kinematic update for the move from prev to cur.
// prevSpeedKmh is the speed the vehicle had at prev. Degenerate pairs
// (non-increasing timestamps, invalid coordinates) yield the zero update.
func Calculate(prev, cur GeoSample, prevSpeedKmh float64) KinematicUpdate {
	if !ValidSample(prev) || !ValidSample(cur) {
		return KinematicUpdate{}
	}
	elapsed := float64(cur.TimestampMs-prev.TimestampMs) / 1000
	if elapsed <= 0 {
		return KinematicUpdate{}
	}
	if math.IsNaN(prevSpeedKmh) || math.IsInf(prevSpeedKmh, 0) {
		prevSpeedKmh = 0
	}

	distance := geo.HaversineM(prev.Lat, prev.Lng, cur.Lat, cur.Lng)
	speed := distance / elapsed * msToKmh
	accel := (speed - prevSpeedKmh) / msToKmh / elapsed
	moving := speed > MinSpeedThresholdKmh

	return KinematicUpdate{
		DistanceM:       distance,
		SpeedKmh:        speed,
		AccelerationMs2: accel,
		IsMoving:        moving,
		IsBraking:       moving && accel < BrakeThresholdMs2,
	}
}

// ReportedSpeedKmh returns the provider speed of s, if it carried one.
func ReportedSpeedKmh(s GeoSample) (float64, bool) {
	if s.SpeedMps == nil || *s.SpeedMps < 0 || math.IsNaN(*s.SpeedMps) {
		return 0, false
	}
	return *s.SpeedMps * msToKmh, true
}

// ValidSample reports whether s has finite, in-range coordinates.
func ValidSample(s GeoSample) bool {
	if math.IsNaN(s.Lat) || math.IsNaN(s.Lng) || math.IsInf(s.Lat, 0) || math.IsInf(s.Lng, 0) {
		return false
	}
	return s.Lat >= -90 && s.Lat <= 90 && s.Lng >= -180 && s.Lng <= 180
}

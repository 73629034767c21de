package movement

import "backend-carbondrive/internal/shared/geo"

// GeoSample is one fix from a location provider. Speed and accuracy are
// optional because not every provider reports them.
type GeoSample struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	TimestampMs int64    `json:"timestamp_ms"`
	SpeedMps    *float64 `json:"speed_mps,omitempty"`
	AccuracyM   *float64 `json:"accuracy_m,omitempty"`
}

// Point drops the time and quality fields.
func (s GeoSample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lng: s.Lng}
}

// KinematicUpdate is derived from one accepted pair of samples.
type KinematicUpdate struct {
	DistanceM       float64 `json:"distance_m"`
	SpeedKmh        float64 `json:"speed_kmh"`
	AccelerationMs2 float64 `json:"acceleration_ms2"`
	IsMoving        bool    `json:"is_moving"`
	IsBraking       bool    `json:"is_braking"`
}

// Zero reports whether u is the zero-effect update.
func (u KinematicUpdate) Zero() bool {
	return u == KinematicUpdate{}
}

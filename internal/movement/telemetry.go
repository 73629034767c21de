package movement

import "math"

const (
	// StoichiometricAFR is the air-fuel mass ratio of petrol combustion.
	StoichiometricAFR = 14.7

	// PetrolDensityGL is grams of petrol per litre.
	PetrolDensityGL = 737.0
)

// Telemetry is one OBD-II reading from the vehicle. Only speed and mass air
// flow feed the session; the rest is carried for clients.
type Telemetry struct {
	TimestampMs   int64    `json:"timestamp_ms"`
	SpeedKmh      float64  `json:"speed_kmh"`
	RPM           float64  `json:"rpm"`
	MAFGs         float64  `json:"maf_gs"`
	ThrottlePct   float64  `json:"throttle_pct"`
	EngineLoadPct float64  `json:"engine_load_pct"`
	FuelLevelPct  float64  `json:"fuel_level_pct"`
	CoolantTempC  float64  `json:"coolant_temp_c"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
}

// ValidTelemetry reports whether speed and air flow are finite and not
// negative.
func ValidTelemetry(r Telemetry) bool {
	for _, v := range []float64{r.SpeedKmh, r.MAFGs} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

// FuelRateLps estimates petrol burned per second from mass air flow.
func (r Telemetry) FuelRateLps() float64 {
	return r.MAFGs / StoichiometricAFR / PetrolDensityGL
}

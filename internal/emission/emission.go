package emission

import "math"

// CO2ToTokenRate is reward units per kg of CO2 saved.
const CO2ToTokenRate = 1.0

type constError string

func (e constError) Error() string { return string(e) }

// ErrUnknownMode is returned when parsing an unrecognized transport mode.
const ErrUnknownMode = constError("unknown transport mode")

// Result is the emission outcome of traveling a distance in a mode.
type Result struct {
	TransportMode   TransportMode `json:"transport_mode"`
	DistanceM       float64       `json:"distance_m"`
	CarbonEmittedKg float64       `json:"carbon_emitted_kg"`
	CarbonSavedKg   float64       `json:"carbon_saved_kg"`
	FuelSavedL      float64       `json:"fuel_saved_l"`
}

// Calculate applies the factor table to distanceM. Negative or non-finite
// distances are treated as zero.
func Calculate(distanceM float64, mode TransportMode) Result {
	if distanceM < 0 || math.IsNaN(distanceM) || math.IsInf(distanceM, 0) {
		distanceM = 0
	}
	km := distanceM / 1000
	f := FactorsFor(mode)
	base := FactorsFor(Car)

	return Result{
		TransportMode:   mode,
		DistanceM:       distanceM,
		CarbonEmittedKg: km * f.EmissionKgPerKm,
		CarbonSavedKg:   math.Max(0, km*(base.EmissionKgPerKm-f.EmissionKgPerKm)),
		FuelSavedL:      math.Max(0, km*(base.FuelLPerKm-f.FuelLPerKm)),
	}
}

// Tokens converts saved carbon into reward units.
func Tokens(carbonSavedKg float64) float64 {
	if carbonSavedKg <= 0 {
		return 0
	}
	return carbonSavedKg * CO2ToTokenRate
}

// Add folds o into r. The mode of r is kept.
func (r Result) Add(o Result) Result {
	r.DistanceM += o.DistanceM
	r.CarbonEmittedKg += o.CarbonEmittedKg
	r.CarbonSavedKg += o.CarbonSavedKg
	r.FuelSavedL += o.FuelSavedL
	return r
}

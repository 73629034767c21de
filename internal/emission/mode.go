// Package emission converts traveled distance into emitted and saved carbon,
// saved fuel and reward tokens.
//
// Savings are always measured against the car baseline and floor at zero.
package emission

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TransportMode is how a session was traveled.
type TransportMode string

const (
	Car             TransportMode = "car"
	Motorcycle      TransportMode = "motorcycle"
	Bicycle         TransportMode = "bicycle"
	Walking         TransportMode = "walking"
	PublicTransport TransportMode = "public_transport"
)

// Modes lists every transport mode in a stable order.
var Modes = []TransportMode{Car, Motorcycle, Bicycle, Walking, PublicTransport}

// Factors are the per-km policy constants of a mode.
type Factors struct {
	EmissionKgPerKm float64
	FuelLPerKm      float64
}

var factors = map[TransportMode]Factors{
	Car:             {EmissionKgPerKm: 0.21, FuelLPerKm: 0.08},
	Motorcycle:      {EmissionKgPerKm: 0.113, FuelLPerKm: 0.03},
	PublicTransport: {EmissionKgPerKm: 0.089, FuelLPerKm: 0.035},
	Bicycle:         {EmissionKgPerKm: 0, FuelLPerKm: 0},
	Walking:         {EmissionKgPerKm: 0, FuelLPerKm: 0},
}

// FactorsFor returns the static factors of m. Unknown modes get zero factors.
func FactorsFor(m TransportMode) Factors {
	return factors[m]
}

// Valid reports whether m is a known mode.
func (m TransportMode) Valid() bool {
	_, ok := factors[m]
	return ok
}

// ParseMode accepts the canonical names case-insensitively, plus a few aliases.
func ParseMode(s string) (TransportMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car", "driving":
		return Car, nil
	case "motorcycle", "moto":
		return Motorcycle, nil
	case "bicycle", "bike", "bicycling":
		return Bicycle, nil
	case "walking", "walk":
		return Walking, nil
	case "public_transport", "transit", "bus":
		return PublicTransport, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// UnmarshalJSON rejects unknown modes so request bodies fail at parse time.
func (m *TransportMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

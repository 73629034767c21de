// Package route folds per-segment distance lookups from an external route
// provider into route-level emission totals.
package route

import (
	"context"
	"fmt"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/shared/geo"
)

// Leg is the provider's answer for one origin/destination pair.
type Leg struct {
	DistanceM float64 `json:"distance_m"`
	DurationS float64 `json:"duration_s"`
}

// Provider looks up road-network distance and duration between two points.
type Provider interface {
	Leg(ctx context.Context, from, to geo.Point, mode emission.TransportMode) (Leg, error)
}

type constError string

func (e constError) Error() string { return string(e) }

const (
	ErrNotEnoughWaypoints  = constError("at least 2 waypoints are required")
	ErrProviderUnavailable = constError("route provider unavailable")
)

// ProviderError is a failed lookup for one segment of a route.
type ProviderError struct {
	Segment int
	Mode    emission.TransportMode
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("route segment %d (%s): %v", e.Segment, e.Mode, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// travelMode maps a transport mode onto the provider's travel mode names.
func travelMode(m emission.TransportMode) string {
	switch m {
	case emission.Bicycle:
		return "bicycling"
	case emission.Walking:
		return "walking"
	case emission.PublicTransport:
		return "transit"
	default:
		return "driving"
	}
}

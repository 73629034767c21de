package route

import (
	"context"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/shared/geo"
)

// nominal door-to-door speeds in km/h, used to estimate durations
var nominalSpeedKmh = map[emission.TransportMode]float64{
	emission.Car:             40,
	emission.Motorcycle:      40,
	emission.PublicTransport: 25,
	emission.Bicycle:         15,
	emission.Walking:         5,
}

// HaversineProvider answers from straight-line distance. It never fails and
// needs no network.
type HaversineProvider struct{}

func (HaversineProvider) Leg(ctx context.Context, from, to geo.Point, mode emission.TransportMode) (Leg, error) {
	if err := ctx.Err(); err != nil {
		return Leg{}, err
	}
	d := geo.Distance(from, to)
	speed := nominalSpeedKmh[mode]
	if speed <= 0 {
		speed = nominalSpeedKmh[emission.Car]
	}
	return Leg{DistanceM: d, DurationS: d / (speed / 3.6)}, nil
}

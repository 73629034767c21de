package route

import (
	"context"
	"time"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/metrics"
	"backend-carbondrive/internal/shared/geo"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultLookupTimeout bounds a single provider lookup.
const DefaultLookupTimeout = 5 * time.Second

// Totals are the folded emissions of a whole route.
type Totals struct {
	TransportMode        emission.TransportMode `json:"transport_mode"`
	Segments             int                    `json:"segments"`
	TotalDistanceM       float64                `json:"total_distance_m"`
	TotalDurationS       float64                `json:"total_duration_s"`
	TotalCarbonEmittedKg float64                `json:"total_carbon_emitted_kg"`
	TotalCarbonSavedKg   float64                `json:"total_carbon_saved_kg"`
	TotalFuelSavedL      float64                `json:"total_fuel_saved_l"`
	TokensEarned         float64                `json:"tokens_earned"`
}

// Comparison is one mode's result for a fixed origin and destination.
type Comparison struct {
	TransportMode emission.TransportMode `json:"transport_mode"`
	Available     bool                   `json:"available"`
	Leg           Leg                    `json:"leg"`
	Emissions     emission.Result        `json:"emissions"`
	Error         string                 `json:"error,omitempty"`
}

type Aggregator struct {
	provider Provider
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewAggregator(provider Provider, timeout time.Duration, logger zerolog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Aggregator{
		provider: provider,
		timeout:  timeout,
		logger:   logger.With().Str("component", "route-aggregator").Logger(),
	}
}

// RouteEmissions looks up every consecutive pair of waypoints and folds the
// per-segment emissions. The first failing segment aborts with a *ProviderError.
func (a *Aggregator) RouteEmissions(ctx context.Context, waypoints []geo.Point, mode emission.TransportMode) (Totals, error) {
	if len(waypoints) < 2 {
		return Totals{}, ErrNotEnoughWaypoints
	}

	acc := emission.Result{TransportMode: mode}
	totals := Totals{TransportMode: mode}
	for i := 0; i < len(waypoints)-1; i++ {
		leg, err := a.lookup(ctx, waypoints[i], waypoints[i+1], mode)
		if err != nil {
			a.logger.Warn().Err(err).Int("segment", i).Str("mode", string(mode)).Msg("route segment lookup failed")
			return Totals{}, &ProviderError{Segment: i, Mode: mode, Err: err}
		}
		acc = acc.Add(emission.Calculate(leg.DistanceM, mode))
		totals.TotalDurationS += leg.DurationS
		totals.Segments++
	}

	totals.TotalDistanceM = acc.DistanceM
	totals.TotalCarbonEmittedKg = acc.CarbonEmittedKg
	totals.TotalCarbonSavedKg = acc.CarbonSavedKg
	totals.TotalFuelSavedL = acc.FuelSavedL
	totals.TokensEarned = emission.Tokens(acc.CarbonSavedKg)
	return totals, nil
}

// CompareModes runs the origin/destination lookup for every transport mode.
// A failing mode is reported unavailable; it never fails the comparison.
func (a *Aggregator) CompareModes(ctx context.Context, origin, destination geo.Point) []Comparison {
	out := make([]Comparison, len(emission.Modes))

	var g errgroup.Group
	for i, mode := range emission.Modes {
		g.Go(func() error {
			c := Comparison{TransportMode: mode, Emissions: emission.Result{TransportMode: mode}}
			leg, err := a.lookup(ctx, origin, destination, mode)
			if err != nil {
				a.logger.Debug().Err(err).Str("mode", string(mode)).Msg("mode unavailable")
				c.Error = err.Error()
			} else {
				c.Available = true
				c.Leg = leg
				c.Emissions = emission.Calculate(leg.DistanceM, mode)
			}
			out[i] = c
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *Aggregator) lookup(ctx context.Context, from, to geo.Point, mode emission.TransportMode) (Leg, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	leg, err := a.provider.Leg(ctx, from, to, mode)
	metrics.RouteLookupDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if ctx.Err() != nil {
			outcome = "timeout"
		}
		metrics.RouteLookupsTotal.WithLabelValues(string(mode), outcome).Inc()
		return Leg{}, err
	}
	metrics.RouteLookupsTotal.WithLabelValues(string(mode), "ok").Inc()
	if leg.DistanceM < 0 {
		leg.DistanceM = 0
	}
	if leg.DurationS < 0 {
		leg.DurationS = 0
	}
	return leg, nil
}

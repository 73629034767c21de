package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session lifecycle
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbondrive_sessions_total",
			Help: "Tracking sessions by lifecycle transition",
		},
		[]string{"transition", "mode"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "carbondrive_active_sessions",
			Help: "Number of sessions currently tracking",
		},
	)

	// Sample ingestion
	SamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbondrive_samples_total",
			Help: "Location samples by ingest outcome",
		},
		[]string{"outcome"},
	)

	TelemetryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbondrive_telemetry_total",
			Help: "OBD-II readings by ingest outcome",
		},
		[]string{"outcome"},
	)

	BrakeEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "carbondrive_brake_events_total",
			Help: "Braking events counted after cooldown",
		},
	)

	// Route provider
	RouteLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbondrive_route_lookups_total",
			Help: "Route provider lookups by outcome",
		},
		[]string{"mode", "outcome"},
	)

	RouteLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carbondrive_route_lookup_duration_seconds",
			Help:    "Route provider lookup latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	RouteCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbondrive_route_cache_total",
			Help: "Route cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	// Reward hand-off
	RewardPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbondrive_reward_publish_total",
			Help: "Finalized sessions handed to reward issuance, by outcome",
		},
		[]string{"outcome"},
	)

	CarbonSavedKgTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbondrive_carbon_saved_kg_total",
			Help: "Carbon saved by finalized sessions in kg CO2",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsTotal,
		ActiveSessions,
		SamplesTotal,
		TelemetryTotal,
		BrakeEventsTotal,
		RouteLookupsTotal,
		RouteLookupDuration,
		RouteCacheTotal,
		RewardPublishTotal,
		CarbonSavedKgTotal,
	)
}

// Handler serves the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

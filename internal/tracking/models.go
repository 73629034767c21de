package tracking

import (
	"time"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/movement"
)

// State is the lifecycle position of a session. Transitions only go
// Idle -> Active -> Finalized; Reset returns to Idle from anywhere.
type State int

const (
	StateIdle State = iota
	StateActive
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "active":
		*s = StateActive
	case "finalized":
		*s = StateFinalized
	default:
		*s = StateIdle
	}
	return nil
}

// Session is a point-in-time copy of a tracking session.
type Session struct {
	ID                   string                 `json:"id"`
	UserID               string                 `json:"user_id"`
	State                State                  `json:"state"`
	TransportMode        emission.TransportMode `json:"transport_mode"`
	StartTime            time.Time              `json:"start_time"`
	EndTime              *time.Time             `json:"end_time,omitempty"`
	Waypoints            []movement.GeoSample   `json:"waypoints"`
	TotalDistanceM       float64                `json:"total_distance_m"`
	TotalDurationS       float64                `json:"total_duration_s"`
	TotalCarbonEmittedKg float64                `json:"total_carbon_emitted_kg"`
	TotalCarbonSavedKg   float64                `json:"total_carbon_saved_kg"`
	TotalFuelSavedL      float64                `json:"total_fuel_saved_l"`
	TokensEarned         float64                `json:"tokens_earned"`
	BrakeEventCount      int                    `json:"brake_event_count"`
	SmoothDrivingScore   float64                `json:"smooth_driving_score"`
	IsBraking            bool                   `json:"is_braking"`
	Reconciled           bool                   `json:"reconciled"`
	TelemetryCount       int                    `json:"telemetry_count,omitempty"`
	MeasuredFuelL        float64                `json:"measured_fuel_l,omitempty"`
}

// Progress is the live view pushed after every accepted sample.
type Progress struct {
	Update             movement.KinematicUpdate `json:"update"`
	TotalDistanceM     float64                  `json:"total_distance_m"`
	TotalCarbonSavedKg float64                  `json:"total_carbon_saved_kg"`
	TokensEarned       float64                  `json:"tokens_earned"`
	BrakeEventCount    int                      `json:"brake_event_count"`
	SmoothDrivingScore float64                  `json:"smooth_driving_score"`
	WaypointCount      int                      `json:"waypoint_count"`
}

const (
	EventProgress  = "progress"
	EventBrake     = "brake"
	EventFinalized = "finalized"
	EventSnapshot  = "snapshot"
)

// Event is what a tracker tells its observers.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Progress  *Progress `json:"progress,omitempty"`
	Session   *Session  `json:"session,omitempty"`
	Warning   string    `json:"warning,omitempty"`
}

// StartRequest is the body of a start-tracking call.
type StartRequest struct {
	UserID        string                 `json:"user_id"`
	TransportMode emission.TransportMode `json:"transport_mode"`
	FirstFix      *movement.GeoSample    `json:"first_fix,omitempty"`
}

// StopResult is a finalized session plus the reconciliation warning, if any.
type StopResult struct {
	Session Session `json:"session"`
	Warning string  `json:"warning,omitempty"`
}

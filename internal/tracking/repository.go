package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-carbondrive/internal/db"
	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/movement"

	"github.com/jackc/pgx/v5"
)

const (
	statusActive    = "active"
	statusFinalized = "finalized"
	statusCancelled = "cancelled"
)

// Repository persists session summaries. Waypoints stay in memory.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Create(ctx context.Context, s Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO track_sessions (id, user_id, transport_mode, status, started_at)
		VALUES ($1,$2,$3,$4,$5)
	`, s.ID, s.UserID, string(s.TransportMode), statusActive, s.StartTime)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Repository) Finalize(ctx context.Context, s Session) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE track_sessions
		SET status=$2, ended_at=$3,
		    total_distance_m=$4, total_duration_s=$5,
		    total_carbon_emitted_kg=$6, total_carbon_saved_kg=$7, total_fuel_saved_l=$8,
		    tokens_earned=$9, brake_event_count=$10, smooth_driving_score=$11, reconciled=$12
		WHERE id=$1
	`, s.ID, statusFinalized, s.EndTime,
		s.TotalDistanceM, s.TotalDurationS,
		s.TotalCarbonEmittedKg, s.TotalCarbonSavedKg, s.TotalFuelSavedL,
		s.TokensEarned, s.BrakeEventCount, s.SmoothDrivingScore, s.Reconciled)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Repository) Cancel(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE track_sessions SET status=$2, ended_at=$3 WHERE id=$1 AND status=$4
	`, id, statusCancelled, time.Now(), statusActive)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (Session, error) {
	var (
		s      Session
		mode   string
		status string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, transport_mode, status, started_at, ended_at,
		       total_distance_m, total_duration_s,
		       total_carbon_emitted_kg, total_carbon_saved_kg, total_fuel_saved_l,
		       tokens_earned, brake_event_count, smooth_driving_score, reconciled
		FROM track_sessions
		WHERE id=$1 AND status <> 'cancelled'
	`, id).Scan(&s.ID, &s.UserID, &mode, &status, &s.StartTime, &s.EndTime,
		&s.TotalDistanceM, &s.TotalDurationS,
		&s.TotalCarbonEmittedKg, &s.TotalCarbonSavedKg, &s.TotalFuelSavedL,
		&s.TokensEarned, &s.BrakeEventCount, &s.SmoothDrivingScore, &s.Reconciled)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	s.TransportMode = emission.TransportMode(mode)
	if status == statusFinalized {
		s.State = StateFinalized
	} else {
		s.State = StateActive
	}
	s.Waypoints = []movement.GeoSample{}
	return s, nil
}

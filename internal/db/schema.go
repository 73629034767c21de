package db

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS track_sessions (
	id                      UUID PRIMARY KEY,
	user_id                 TEXT NOT NULL,
	transport_mode          TEXT NOT NULL,
	status                  TEXT NOT NULL,
	started_at              TIMESTAMPTZ NOT NULL,
	ended_at                TIMESTAMPTZ,
	total_distance_m        DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_duration_s        DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_carbon_emitted_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_carbon_saved_kg   DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_fuel_saved_l      DOUBLE PRECISION NOT NULL DEFAULT 0,
	tokens_earned           DOUBLE PRECISION NOT NULL DEFAULT 0,
	brake_event_count       INTEGER NOT NULL DEFAULT 0,
	smooth_driving_score    DOUBLE PRECISION NOT NULL DEFAULT 100,
	reconciled              BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS track_sessions_user_idx ON track_sessions (user_id, started_at DESC);
`

// EnsureSchema creates the session tables if they are missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

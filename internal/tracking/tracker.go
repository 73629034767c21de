// Package tracking owns the movement session lifecycle: it ingests location
// samples, accumulates distance, emissions and driving behaviour, and
// reconciles the recorded path against a route provider on stop.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/location"
	"backend-carbondrive/internal/metrics"
	"backend-carbondrive/internal/movement"
	"backend-carbondrive/internal/route"
	"backend-carbondrive/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// NoiseFloorM is the displacement below which a sample is treated as
	// GPS jitter and dropped.
	NoiseFloorM = 10.0

	// telemetrySkewMs is how far an OBD reading may be from a sample and
	// still stand for the vehicle speed at that sample.
	telemetrySkewMs = 5_000

	// maxTelemetryGapMs bounds the interval one reading's fuel rate covers.
	maxTelemetryGapMs = 60_000
)

// Reconciler recomputes a session's totals over its recorded waypoints.
type Reconciler interface {
	RouteEmissions(ctx context.Context, waypoints []geo.Point, mode emission.TransportMode) (route.Totals, error)
}

type TrackerConfig struct {
	UserID        string
	Reconciler    Reconciler
	Clock         Clock
	Notify        func(Event)
	BrakeCooldown time.Duration
	Logger        zerolog.Logger
}

// Tracker is one session of a single user. All mutation happens under mu;
// the location pump and direct Ingest calls serialize through it.
type Tracker struct {
	userID     string
	reconciler Reconciler
	clock      Clock
	notify     func(Event)
	logger     zerolog.Logger

	mu       sync.Mutex
	session  Session
	brakes   *movement.BrakeDetector
	window   movement.SmoothnessWindow
	last     movement.GeoSample
	hasLast  bool
	speedKmh float64
	obd      movement.Telemetry
	hasOBD   bool
	sub      location.Subscription
	drained  chan struct{}
	gen      uint64
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Notify == nil {
		cfg.Notify = func(Event) {}
	}
	return &Tracker{
		userID:     cfg.UserID,
		reconciler: cfg.Reconciler,
		clock:      cfg.Clock,
		notify:     cfg.Notify,
		logger:     cfg.Logger.With().Str("component", "tracker").Logger(),
		session:    idleSession(cfg.UserID),
		brakes:     movement.NewBrakeDetector(cfg.BrakeCooldown),
	}
}

func idleSession(userID string) Session {
	return Session{UserID: userID, State: StateIdle, SmoothDrivingScore: 100}
}

// Start opens a new session. A nil src starts a session fed only through
// Ingest. A src without a fix yet is fine; a src that cannot be watched
// fails with location.ErrLocationUnavailable.
func (t *Tracker) Start(ctx context.Context, mode emission.TransportMode, src location.Source) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State != StateIdle {
		return Session{}, t.transitionErr("start")
	}
	if !mode.Valid() {
		return Session{}, fmt.Errorf("%w: %q", emission.ErrUnknownMode, mode)
	}

	var (
		sub   location.Subscription
		first *movement.GeoSample
	)
	if src != nil {
		s, err := src.Watch(ctx)
		if err != nil {
			return Session{}, unavailable(err)
		}
		fix, err := src.CurrentFix(ctx)
		switch {
		case err == nil:
			first = &fix
		case errors.Is(err, location.ErrNoFix):
		default:
			s.Cancel()
			return Session{}, unavailable(err)
		}
		sub = s
	}

	t.gen++
	t.clearLocked()
	t.session = Session{
		ID:                 uuid.NewString(),
		UserID:             t.userID,
		State:              StateActive,
		TransportMode:      mode,
		StartTime:          t.clock.Now(),
		Waypoints:          []movement.GeoSample{},
		SmoothDrivingScore: 100,
	}
	if first != nil && movement.ValidSample(*first) {
		t.session.Waypoints = append(t.session.Waypoints, *first)
		t.last = *first
		t.hasLast = true
	}
	if sub != nil {
		t.sub = sub
		t.drained = make(chan struct{})
		go t.pump(sub, t.gen, t.drained)
	}

	metrics.SessionsTotal.WithLabelValues("started", string(mode)).Inc()
	metrics.ActiveSessions.Inc()
	t.logger.Info().
		Str("session_id", t.session.ID).
		Str("user_id", t.userID).
		Str("mode", string(mode)).
		Bool("first_fix", first != nil).
		Msg("session started")

	return t.snapshotLocked(), nil
}

func unavailable(err error) error {
	if errors.Is(err, location.ErrLocationUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", location.ErrLocationUnavailable, err)
}

func (t *Tracker) pump(sub location.Subscription, gen uint64, done chan struct{}) {
	defer close(done)
	for s := range sub.Samples() {
		if _, err := t.ingest(s, gen, true); errors.Is(err, ErrInvalidStateTransition) {
			return
		}
	}
}

// Ingest feeds one sample into an active session. Samples that are invalid,
// out of order or within the noise floor are dropped and yield the zero
// update with a nil error.
func (t *Tracker) Ingest(s movement.GeoSample) (movement.KinematicUpdate, error) {
	return t.ingest(s, 0, false)
}

func (t *Tracker) ingest(s movement.GeoSample, gen uint64, pinned bool) (movement.KinematicUpdate, error) {
	t.mu.Lock()
	if (pinned && gen != t.gen) || t.session.State != StateActive {
		err := t.transitionErr("ingest")
		t.mu.Unlock()
		return movement.KinematicUpdate{}, err
	}
	u, events := t.acceptLocked(s)
	t.mu.Unlock()

	for _, ev := range events {
		t.notify(ev)
	}
	return u, nil
}

func (t *Tracker) acceptLocked(s movement.GeoSample) (movement.KinematicUpdate, []Event) {
	if !movement.ValidSample(s) {
		metrics.SamplesTotal.WithLabelValues("invalid").Inc()
		return movement.KinematicUpdate{}, nil
	}
	if !t.hasLast {
		t.session.Waypoints = append(t.session.Waypoints, s)
		t.last = s
		t.hasLast = true
		metrics.SamplesTotal.WithLabelValues("accepted").Inc()
		return movement.KinematicUpdate{}, nil
	}
	if s.TimestampMs <= t.last.TimestampMs {
		metrics.SamplesTotal.WithLabelValues("out_of_order").Inc()
		return movement.KinematicUpdate{}, nil
	}

	u := movement.Calculate(t.last, s, t.prevSpeedLocked())
	if u.DistanceM < NoiseFloorM {
		metrics.SamplesTotal.WithLabelValues("jitter").Inc()
		return movement.KinematicUpdate{}, nil
	}

	sess := &t.session
	sess.Waypoints = append(sess.Waypoints, s)
	sess.TotalDistanceM += u.DistanceM
	sess.TotalDurationS = float64(s.TimestampMs-sess.Waypoints[0].TimestampMs) / 1000

	delta := emission.Calculate(u.DistanceM, sess.TransportMode)
	sess.TotalCarbonEmittedKg += delta.CarbonEmittedKg
	sess.TotalCarbonSavedKg += delta.CarbonSavedKg
	sess.TotalFuelSavedL += delta.FuelSavedL
	sess.TokensEarned = emission.Tokens(sess.TotalCarbonSavedKg)

	counted := t.brakes.Observe(u, s.TimestampMs)
	t.window.Push(u.AccelerationMs2)
	sess.BrakeEventCount = t.brakes.Count()
	sess.SmoothDrivingScore = t.window.Score()
	sess.IsBraking = u.IsBraking

	t.last = s
	t.speedKmh = u.SpeedKmh
	metrics.SamplesTotal.WithLabelValues("accepted").Inc()

	p := &Progress{
		Update:             u,
		TotalDistanceM:     sess.TotalDistanceM,
		TotalCarbonSavedKg: sess.TotalCarbonSavedKg,
		TokensEarned:       sess.TokensEarned,
		BrakeEventCount:    sess.BrakeEventCount,
		SmoothDrivingScore: sess.SmoothDrivingScore,
		WaypointCount:      len(sess.Waypoints),
	}
	events := []Event{{Type: EventProgress, SessionID: sess.ID, Progress: p}}
	if counted {
		metrics.BrakeEventsTotal.Inc()
		t.logger.Debug().
			Str("session_id", sess.ID).
			Float64("accel_ms2", u.AccelerationMs2).
			Int("count", sess.BrakeEventCount).
			Msg("brake event")
		events = append(events, Event{Type: EventBrake, SessionID: sess.ID, Progress: p})
	}
	return u, events
}

// prevSpeedLocked is the vehicle speed at the last accepted sample: a nearby
// OBD reading, else the provider speed, else the speed derived on arrival.
func (t *Tracker) prevSpeedLocked() float64 {
	if t.hasOBD {
		skew := t.obd.TimestampMs - t.last.TimestampMs
		if skew >= -telemetrySkewMs && skew <= telemetrySkewMs {
			return t.obd.SpeedKmh
		}
	}
	if v, ok := movement.ReportedSpeedKmh(t.last); ok {
		return v
	}
	return t.speedKmh
}

// IngestTelemetry records one OBD-II reading. Its speed stands in for the
// previous speed of nearby samples and its air flow accrues measured fuel.
// Invalid and out-of-order readings are dropped with a nil error.
func (t *Tracker) IngestTelemetry(r movement.Telemetry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State != StateActive {
		return t.transitionErr("ingest telemetry")
	}
	if !movement.ValidTelemetry(r) {
		metrics.TelemetryTotal.WithLabelValues("invalid").Inc()
		return nil
	}
	if t.hasOBD && r.TimestampMs <= t.obd.TimestampMs {
		metrics.TelemetryTotal.WithLabelValues("out_of_order").Inc()
		return nil
	}
	if t.hasOBD {
		if gap := r.TimestampMs - t.obd.TimestampMs; gap <= maxTelemetryGapMs {
			t.session.MeasuredFuelL += t.obd.FuelRateLps() * float64(gap) / 1000
		}
	}
	t.obd = r
	t.hasOBD = true
	t.session.TelemetryCount++
	metrics.TelemetryTotal.WithLabelValues("accepted").Inc()
	return nil
}

// Stop finalizes the session. With two or more waypoints the totals are
// recomputed through the Reconciler; if that fails the incremental totals
// are kept and the returned error wraps the *route.ProviderError as a
// warning alongside a valid session.
func (t *Tracker) Stop(ctx context.Context) (Session, error) {
	t.mu.Lock()
	if t.session.State != StateActive {
		err := t.transitionErr("stop")
		t.mu.Unlock()
		return Session{}, err
	}
	now := t.clock.Now()
	t.session.EndTime = &now
	t.session.State = StateFinalized
	t.session.IsBraking = false
	sub := t.sub
	t.sub = nil
	gen := t.gen
	final := t.snapshotLocked()
	t.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	metrics.ActiveSessions.Dec()

	var warn error
	if len(final.Waypoints) >= 2 && t.reconciler != nil {
		totals, err := t.reconciler.RouteEmissions(ctx, waypointPoints(final.Waypoints), final.TransportMode)
		if err != nil {
			warn = fmt.Errorf("route reconciliation failed, keeping incremental totals: %w", err)
			t.logger.Warn().Err(err).Str("session_id", final.ID).Msg("route reconciliation failed")
		} else {
			applyTotals(&final, totals)
			t.mu.Lock()
			if t.gen == gen {
				applyTotals(&t.session, totals)
			}
			t.mu.Unlock()
		}
	}

	metrics.SessionsTotal.WithLabelValues("finalized", string(final.TransportMode)).Inc()
	metrics.CarbonSavedKgTotal.WithLabelValues(string(final.TransportMode)).Add(final.TotalCarbonSavedKg)
	t.logger.Info().
		Str("session_id", final.ID).
		Int("waypoints", len(final.Waypoints)).
		Float64("distance_m", final.TotalDistanceM).
		Float64("saved_kg", final.TotalCarbonSavedKg).
		Bool("reconciled", final.Reconciled).
		Msg("session finalized")

	ev := Event{Type: EventFinalized, SessionID: final.ID, Session: &final}
	if warn != nil {
		ev.Warning = warn.Error()
	}
	t.notify(ev)
	return final, warn
}

func waypointPoints(ws []movement.GeoSample) []geo.Point {
	pts := make([]geo.Point, len(ws))
	for i, w := range ws {
		pts[i] = w.Point()
	}
	return pts
}

func applyTotals(s *Session, t route.Totals) {
	s.TotalDistanceM = t.TotalDistanceM
	s.TotalDurationS = t.TotalDurationS
	s.TotalCarbonEmittedKg = t.TotalCarbonEmittedKg
	s.TotalCarbonSavedKg = t.TotalCarbonSavedKg
	s.TotalFuelSavedL = t.TotalFuelSavedL
	s.TokensEarned = emission.Tokens(t.TotalCarbonSavedKg)
	s.Reconciled = true
}

// Reset discards the session from any state and cancels its subscription.
func (t *Tracker) Reset() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	wasActive := t.session.State == StateActive
	id, mode := t.session.ID, t.session.TransportMode
	t.gen++
	t.clearLocked()
	t.session = idleSession(t.userID)
	t.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if wasActive {
		metrics.ActiveSessions.Dec()
	}
	if id != "" {
		metrics.SessionsTotal.WithLabelValues("reset", string(mode)).Inc()
		t.logger.Info().Str("session_id", id).Bool("was_active", wasActive).Msg("session reset")
	}
}

func (t *Tracker) clearLocked() {
	t.brakes.Reset()
	t.window.Reset()
	t.last = movement.GeoSample{}
	t.hasLast = false
	t.speedKmh = 0
	t.obd = movement.Telemetry{}
	t.hasOBD = false
}

func (t *Tracker) Snapshot() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Session {
	s := t.session
	if t.session.Waypoints != nil {
		s.Waypoints = append([]movement.GeoSample(nil), t.session.Waypoints...)
	}
	if t.session.EndTime != nil {
		end := *t.session.EndTime
		s.EndTime = &end
	}
	return s
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.State
}

// Drained is closed once the location pump of the current session has
// consumed every sample its subscription delivered.
func (t *Tracker) Drained() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drained == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return t.drained
}

func (t *Tracker) transitionErr(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidStateTransition, op, t.session.State)
}

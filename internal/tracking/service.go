package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend-carbondrive/internal/db"
	"backend-carbondrive/internal/location"
	"backend-carbondrive/internal/movement"
	"backend-carbondrive/internal/reward"
	"backend-carbondrive/internal/stream"

	"github.com/rs/zerolog"
)

// drainTimeout bounds how long Stop waits for queued samples.
const drainTimeout = 2 * time.Second

type Deps struct {
	DB         db.Querier
	Hub        *stream.Hub
	Rewards    reward.Publisher
	Reconciler Reconciler
	Clock      Clock
	Logger     zerolog.Logger
}

type liveSession struct {
	owner   string
	tracker *Tracker
	feed    *location.Feed
}

// Service runs the live sessions of this instance. Samples arrive over
// HTTP into a per-session feed the session's tracker is watching.
type Service struct {
	repo       *Repository
	hub        *stream.Hub
	rewards    reward.Publisher
	reconciler Reconciler
	clock      Clock
	base       zerolog.Logger
	logger     zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

func NewService(d Deps) *Service {
	s := &Service{
		hub:        d.Hub,
		rewards:    d.Rewards,
		reconciler: d.Reconciler,
		clock:      d.Clock,
		base:       d.Logger,
		logger:     d.Logger.With().Str("component", "tracking").Logger(),
		sessions:   map[string]*liveSession{},
	}
	if d.DB != nil {
		s.repo = NewRepository(d.DB)
	}
	if s.rewards == nil {
		s.rewards = reward.Nop{}
	}
	return s
}

func (s *Service) StartSession(ctx context.Context, req StartRequest) (Session, error) {
	feed := location.NewFeed(req.FirstFix)
	tr := NewTracker(TrackerConfig{
		UserID:     req.UserID,
		Reconciler: s.reconciler,
		Clock:      s.clock,
		Notify:     s.broadcast,
		Logger:     s.base,
	})

	sess, err := tr.Start(ctx, req.TransportMode, feed)
	if err != nil {
		feed.Cancel()
		return Session{}, err
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, sess); err != nil {
			tr.Reset()
			return Session{}, err
		}
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &liveSession{owner: req.UserID, tracker: tr, feed: feed}
	s.mu.Unlock()
	return sess, nil
}

func (s *Service) live(id string) (*liveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

// owned is live restricted to sessions started by userID.
func (s *Service) owned(id, userID string) (*liveSession, error) {
	ls, err := s.live(id)
	if err != nil {
		return nil, err
	}
	if ls.owner != userID {
		return nil, ErrSessionForbidden
	}
	return ls, nil
}

// PushSamples queues samples for the session's tracker and returns how
// many were queued.
func (s *Service) PushSamples(ctx context.Context, userID, id string, samples []movement.GeoSample) (int, error) {
	ls, err := s.owned(id, userID)
	if err != nil {
		return 0, err
	}
	for i, sample := range samples {
		if err := ls.feed.Push(ctx, sample); err != nil {
			if errors.Is(err, location.ErrClosed) {
				return i, fmt.Errorf("%w: session is no longer active", ErrInvalidStateTransition)
			}
			return i, err
		}
	}
	return len(samples), nil
}

// PushTelemetry applies OBD-II readings to the session's tracker and returns
// how many were applied.
func (s *Service) PushTelemetry(_ context.Context, userID, id string, readings []movement.Telemetry) (int, error) {
	ls, err := s.owned(id, userID)
	if err != nil {
		return 0, err
	}
	for i, r := range readings {
		if err := ls.tracker.IngestTelemetry(r); err != nil {
			return i, err
		}
	}
	return len(readings), nil
}

// StopSession finalizes a session after its queued samples are ingested.
// A non-nil warning comes with a valid session when reconciliation failed.
func (s *Service) StopSession(ctx context.Context, userID, id string) (Session, error) {
	ls, err := s.owned(id, userID)
	if err != nil {
		return Session{}, err
	}

	ls.feed.Drain()
	select {
	case <-ls.tracker.Drained():
	case <-time.After(drainTimeout):
		s.logger.Warn().
			Str("session_id", id).
			Int("queued", ls.feed.Pending()).
			Msg("stopping before the feed drained")
	case <-ctx.Done():
		s.logger.Warn().
			Err(ctx.Err()).
			Str("session_id", id).
			Int("queued", ls.feed.Pending()).
			Msg("stopping before the feed drained")
	}

	sess, warn := ls.tracker.Stop(ctx)
	if errors.Is(warn, ErrInvalidStateTransition) {
		return Session{}, warn
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Finalize(ctx, sess); err != nil {
			s.logger.Error().Err(err).Str("session_id", id).Msg("persist finalized session")
		}
	}
	s.issue(ctx, sess)
	return sess, warn
}

func (s *Service) issue(ctx context.Context, sess Session) {
	iss := reward.Issuance{
		SessionID:     sess.ID,
		UserID:        sess.UserID,
		TransportMode: string(sess.TransportMode),
		DistanceM:     sess.TotalDistanceM,
		CarbonSavedKg: sess.TotalCarbonSavedKg,
		TokensEarned:  sess.TokensEarned,
		Reconciled:    sess.Reconciled,
	}
	if sess.EndTime != nil {
		iss.FinalizedAt = *sess.EndTime
	}
	if err := s.rewards.Publish(ctx, iss); err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("reward hand-off failed")
	}
}

// ResetSession discards a live session without issuing rewards.
func (s *Service) ResetSession(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	ls, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if ls.owner != userID {
		s.mu.Unlock()
		return ErrSessionForbidden
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	ls.tracker.Reset()
	ls.feed.Cancel()
	if s.repo != nil {
		if err := s.repo.Cancel(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("session_id", id).Msg("persist cancelled session")
		}
	}
	return nil
}

// GetSession returns the live snapshot, or the stored summary once the
// session has left this instance.
func (s *Service) GetSession(ctx context.Context, id string) (Session, error) {
	if ls, err := s.live(id); err == nil {
		return ls.tracker.Snapshot(), nil
	}
	if s.repo == nil {
		return Session{}, ErrSessionNotFound
	}
	return s.repo.Get(ctx, id)
}

// SnapshotEvent encodes the live state of id for a new stream watcher.
func (s *Service) SnapshotEvent(id string) ([]byte, bool) {
	ls, err := s.live(id)
	if err != nil {
		return nil, false
	}
	snap := ls.tracker.Snapshot()
	data, err := json.Marshal(Event{Type: EventSnapshot, SessionID: id, Session: &snap})
	if err != nil {
		return nil, false
	}
	return data, true
}

// Shutdown resets every live session.
func (s *Service) Shutdown() {
	s.mu.Lock()
	live := s.sessions
	s.sessions = map[string]*liveSession{}
	s.mu.Unlock()

	for _, ls := range live {
		ls.tracker.Reset()
		ls.feed.Cancel()
	}
}

func (s *Service) broadcast(ev Event) {
	if s.hub == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", ev.SessionID).Msg("encode event")
		return
	}
	s.hub.Broadcast(ev.SessionID, data)
}

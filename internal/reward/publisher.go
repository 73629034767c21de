// Package reward hands finalized sessions to token issuance.
package reward

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend-carbondrive/internal/metrics"

	"github.com/nats-io/nats.go"
)

// DefaultSubject carries one Issuance per finalized session.
const DefaultSubject = "rewards.sessions.finalized"

// Issuance is the reward hand-off for one finalized session.
type Issuance struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	TransportMode string    `json:"transport_mode"`
	DistanceM     float64   `json:"distance_m"`
	CarbonSavedKg float64   `json:"carbon_saved_kg"`
	TokensEarned  float64   `json:"tokens_earned"`
	Reconciled    bool      `json:"reconciled"`
	FinalizedAt   time.Time `json:"finalized_at"`
}

type Publisher interface {
	Publish(ctx context.Context, iss Issuance) error
}

type natsConn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes issuances on a NATS subject. The session id is
// sent as Nats-Msg-Id so a JetStream stream on the subject dedupes retries.
type NATSPublisher struct {
	conn    natsConn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("carbondrive-tracker"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newPublisher(nc, subject), nil
}

func newPublisher(conn natsConn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Publish sends iss. Sessions that earned nothing are skipped.
func (p *NATSPublisher) Publish(ctx context.Context, iss Issuance) error {
	if iss.TokensEarned <= 0 {
		metrics.RewardPublishTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	data, err := json.Marshal(iss)
	if err != nil {
		return fmt.Errorf("failed to marshal issuance: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, iss.SessionID)

	if err := p.conn.PublishMsg(msg); err != nil {
		metrics.RewardPublishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish issuance: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		metrics.RewardPublishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to flush issuance: %w", err)
	}
	metrics.RewardPublishTotal.WithLabelValues("ok").Inc()
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// Nop discards every issuance.
type Nop struct{}

func (Nop) Publish(context.Context, Issuance) error { return nil }

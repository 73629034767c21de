// Package stream fans live session events out to websocket watchers,
// across instances through Redis pub/sub.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	channelPrefix  = "tracking:"
	channelSuffix  = ":broadcast"
	channelPattern = channelPrefix + "*" + channelSuffix

	sendBuffer = 64

	relayBuffer    = 256
	publishTimeout = 2 * time.Second
)

type Hub struct {
	id      string
	redis   *redis.Client
	logger  zerolog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	relay  chan relayMsg
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type relayMsg struct {
	sessionID string
	data      []byte
}

type Client struct {
	SessionID string
	Send      chan []byte
}

// envelope tags relayed payloads with the publishing hub so it can skip
// its own echoes.
type envelope struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client, logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		logger:  logger.With().Str("component", "stream").Logger(),
		clients: map[string]map[*Client]struct{}{},
		cancel:  cancel,
	}

	if redisClient != nil {
		h.relay = make(chan relayMsg, relayBuffer)
		h.wg.Add(2)
		go h.subscribeRedis(ctx)
		go h.publishRedis(ctx)
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := sessionClients[client]; !ok {
		return
	}
	delete(sessionClients, client)
	if len(sessionClients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
}

// Watchers is the number of local clients of sessionID.
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Broadcast delivers payload to local watchers of sessionID and queues it
// for other instances. It never blocks: slow watchers and a full relay
// queue drop messages.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.relay == nil {
		return
	}
	data, err := json.Marshal(envelope{Origin: h.id, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode relay envelope")
		return
	}
	select {
	case h.relay <- relayMsg{sessionID: sessionID, data: data}:
	default:
		h.logger.Warn().Str("session_id", sessionID).Msg("relay queue full, dropping")
	}
}

func (h *Hub) publishRedis(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.relay:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := h.redis.Publish(pubCtx, redisChannel(msg.sessionID), msg.data).Err()
			cancel()
			if err != nil {
				h.logger.Warn().Err(err).Str("session_id", msg.sessionID).Msg("redis publish failed")
			}
		}
	}
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
			h.logger.Debug().Str("session_id", sessionID).Msg("watcher buffer full, dropping")
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	defer h.wg.Done()
	pubsub := h.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			sessionID := sessionIDFromChannel(msg.Channel)
			if sessionID == "" {
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("malformed relay message")
				continue
			}
			if env.Origin == h.id {
				continue
			}
			h.deliver(sessionID, env.Payload)
		}
	}
}

// Close stops relaying to and from Redis. Registered clients stay open.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	if ch[:len(channelPrefix)] != channelPrefix || ch[len(ch)-len(channelSuffix):] != channelSuffix {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}

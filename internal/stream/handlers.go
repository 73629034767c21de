package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SnapshotFunc returns the current state of a session, encoded for the
// wire, so a new watcher does not wait for the next event.
type SnapshotFunc func(sessionID string) ([]byte, bool)

func RegisterRoutes(r fiber.Router, hub *Hub, snapshot SnapshotFunc) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionID")
		client := hub.Register(sessionID)
		defer hub.Unregister(client)

		if snapshot != nil {
			if msg, ok := snapshot(sessionID); ok {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}

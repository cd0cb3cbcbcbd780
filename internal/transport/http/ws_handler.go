package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS streams overall leaderboard snapshots. Clients receive the current
// standings on connect and an update after every accepted attempt.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	initial, err := h.leaderboards.Overall(r.Context(), 10)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[map[string]string]{
			Type:    "error",
			Payload: map[string]string{"message": err.Error()},
		})
		return
	}

	updates, cancel := h.hub.Subscribe()
	defer cancel()

	if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: initial}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain the client; we only care about the connection closing.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: update}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

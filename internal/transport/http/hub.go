package http

import (
	"sync"

	"daily-puzzle-service/internal/domain"
)

// Hub fans leaderboard snapshots out to websocket subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

// Subscribe returns a channel of snapshots. The caller must invoke the
// returned cancel function to avoid leaks.
func (h *Hub) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers a snapshot to every subscriber, dropping the stalest
// update for slow consumers instead of blocking.
func (h *Hub) Broadcast(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

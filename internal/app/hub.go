package app

import (
	"sync"

	"pyquest-gamification/internal/domain"
)

// Hub fans ranking snapshots out to live subscribers per period key.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan domain.Leaderboard]struct{})}
}

// Subscribe registers a channel for periodKey and primes it with initial.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(periodKey string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[periodKey]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[periodKey] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[periodKey]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(h.subscribers, periodKey)
			}
		}
	}
	return ch, cancel
}

// Publish never blocks: a full subscriber loses its oldest pending snapshot.
func (h *Hub) Publish(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[lb.PeriodKey] {
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

// Subscribers reports the live subscriber count for periodKey.
func (h *Hub) Subscribers(periodKey string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[periodKey])
}

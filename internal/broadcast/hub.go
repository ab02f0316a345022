// Package broadcast fans system snapshots out to subscribed observers.
package broadcast

import (
	"sync"

	"stove_control/internal/models"
)

const subscriberBuffer = 8

// Hub delivers snapshots to every current subscriber. Publish never
// blocks: a subscriber that falls behind loses its oldest pending
// snapshot, never the newest.
type Hub struct {
	mu      sync.Mutex
	clients map[chan models.SystemSnapshot]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan models.SystemSnapshot]struct{})}
}

// Subscribe registers an observer and returns its channel plus a cancel
// function that unregisters and closes it. If initial is non-nil it is
// queued before any later publish.
func (h *Hub) Subscribe(initial *models.SystemSnapshot) (<-chan models.SystemSnapshot, func()) {
	ch := make(chan models.SystemSnapshot, subscriberBuffer)
	h.mu.Lock()
	if initial != nil {
		ch <- *initial
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends snap to all subscribers.
func (h *Hub) Publish(snap models.SystemSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		offer(ch, snap)
	}
}

// Subscribers returns the number of registered observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// offer enqueues snap, evicting the oldest queued snapshot when full.
// Callers hold h.mu, so no other producer races for the freed slot.
func offer(ch chan models.SystemSnapshot, snap models.SystemSnapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Package sse fans out server-sent events to the live dashboard sessions of
// each user.
package sse

import (
	"encoding/json"
	"fmt"
	"sync"
)

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a listener for one user's events. The returned func
// unsubscribes and closes the channel; slow listeners drop events rather
// than block publishers.
func (h *Hub) Subscribe(user string) (chan []byte, func()) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	if _, ok := h.subs[user]; !ok {
		h.subs[user] = make(map[chan []byte]struct{})
	}
	h.subs[user][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if subscribers, ok := h.subs[user]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(h.subs, user)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
}

// Publish sends a named event with a JSON payload to all of one user's
// subscribers.
func (h *Hub) Publish(user, event string, payload any) {
	if user == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[user] {
		select {
		case ch <- frame:
		default:
		}
	}
}

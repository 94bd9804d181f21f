// Package hub fans chat events out to connected listeners. It serves two
// delivery styles from one broadcast path: websocket clients receive every
// event as a JSON envelope, and long-poll handlers block on Wake until
// something new has been published.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event names carried in websocket envelopes.
const (
	EventMessage = "chat_message"
	EventError   = "chat_error"
)

// Envelope is the wire framing for pushed events.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks websocket clients and long-poll waiters for the chat room.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	wake    chan struct{}
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		wake:    make(chan struct{}),
	}
}

// Register adds a websocket client to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Debug("hub client registered", slog.Int("clients", n))
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once for the same client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Debug("hub client unregistered", slog.Int("clients", n))
}

// Broadcast marshals one envelope, delivers it to every websocket client,
// and wakes all long-poll waiters. A client whose send buffer is full is
// dropped rather than allowed to stall the rest of the room.
func (h *Hub) Broadcast(event string, data any) error {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	var stalled []*Client
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		delete(h.clients, c)
		close(c.send)
	}
	// Swap the wake channel so every current waiter unblocks exactly once.
	close(h.wake)
	h.wake = make(chan struct{})
	h.mu.Unlock()

	if len(stalled) > 0 {
		slog.Warn("dropped stalled websocket clients", slog.Int("count", len(stalled)))
	}
	return nil
}

// Wake returns a channel that closes the next time anything is broadcast.
// Long-poll handlers select on it alongside their deadline and request
// context; after it fires they re-query and, if still empty, call Wake
// again for a fresh channel.
func (h *Hub) Wake() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.wake
}

// ClientCount reports how many websocket clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Package realtime fans server-side events out to a user's open push
// channels. Delivery is at-most-once and best-effort: durability comes from
// the persisted record, which clients re-fetch on reconnect.
package realtime

import (
	"sync"
)

// Known event types pushed to clients.
const (
	EventRecordCreated = "record_created"
	EventCrisisAlert   = "crisis_alert"
)

// Event is the wire shape of one push notification.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// channelBuffer bounds how many undelivered events a slow client may hold
// before further events are dropped for that channel.
const channelBuffer = 16

// Channel is one open server-to-client stream, scoped to a single user and a
// single underlying connection. Multiple channels per user means multiple
// tabs or devices.
type Channel struct {
	userID string
	events chan Event
	once   sync.Once
}

// Events is the receive side consumed by the transport writer.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// UserID returns the owner of the channel.
func (c *Channel) UserID() string {
	return c.userID
}

func (c *Channel) close() {
	c.once.Do(func() {
		close(c.events)
	})
}

// Hub holds the live channel registry, keyed by user id. It is process-local:
// a multi-instance deployment needs an external fan-out bus or sticky routing
// per user.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Channel]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Channel]struct{})}
}

// Subscribe opens a new channel for the user. The caller owns the channel's
// lifecycle and must Unsubscribe when the connection ends.
func (h *Hub) Subscribe(userID string) *Channel {
	ch := &Channel{
		userID: userID,
		events: make(chan Event, channelBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[userID] == nil {
		h.channels[userID] = make(map[*Channel]struct{})
	}
	h.channels[userID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes the channel from the registry and closes it. There is
// no implicit revival: a reconnecting client gets a fresh channel.
func (h *Hub) Unsubscribe(ch *Channel) {
	h.mu.Lock()
	userChannels, ok := h.channels[ch.userID]
	if ok {
		delete(userChannels, ch)
		if len(userChannels) == 0 {
			delete(h.channels, ch.userID)
		}
	}
	h.mu.Unlock()

	ch.close()
}

// Publish delivers the event to every open channel for the user, in publish
// order per channel. A user with no open channels is a no-op, not an error. A
// channel whose buffer is full has the event dropped; the client re-fetches
// state on reconnect.
func (h *Hub) Publish(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.channels[userID] {
		select {
		case ch.events <- event:
		default:
		}
	}
}

// ConnectionCount reports the number of open channels for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[userID])
}

// Package realtime publishes session events to subscribed clients over a
// per-session pub/sub fabric.
package realtime

import (
	"sync"
	"time"

	"github.com/concordhq/concord/pkg/models"
)

// subscriberBuffer is the per-subscriber channel depth. A slow consumer
// drops messages rather than block the publisher.
const subscriberBuffer = 32

// Hub fans DeliveryEvents out to subscribers of a session room. Rooms are
// isolated: a subscriber of one session never observes another session's
// events (P5/C3).
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]*room
}

type room struct {
	mu          sync.Mutex
	seq         uint64
	subscribers map[chan models.DeliveryEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[int64]*room)}
}

// Subscribe joins a client to a session's room. The returned cancel func
// must be called to release the subscription and close the channel.
func (h *Hub) Subscribe(sessionID int64) (<-chan models.DeliveryEvent, func()) {
	ch := make(chan models.DeliveryEvent, subscriberBuffer)

	h.mu.Lock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = &room{subscribers: make(map[chan models.DeliveryEvent]struct{})}
		h.rooms[sessionID] = r
	}
	h.mu.Unlock()

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		delete(r.subscribers, ch)
		empty := len(r.subscribers) == 0
		r.mu.Unlock()
		close(ch)

		if empty {
			h.mu.Lock()
			if cur, ok := h.rooms[sessionID]; ok && len(cur.subscribers) == 0 {
				delete(h.rooms, sessionID)
			}
			h.mu.Unlock()
		}
	}
	return ch, cancel
}

// Publish assigns the next event_seq for sessionID and broadcasts the event
// to every current subscriber of its room. Delivery never blocks the
// publisher and never silently drops the event being published: if a
// subscriber's buffer is full, its oldest queued event is evicted to make
// room before the new one is sent, so a stalled consumer loses older
// buffered events rather than the one currently being delivered. Consumers
// reconcile gaps by event_seq, which is monotonic per session.
func (h *Hub) Publish(sessionID int64, eventType models.EventType, payload interface{}) models.DeliveryEvent {
	h.mu.Lock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = &room{subscribers: make(map[chan models.DeliveryEvent]struct{})}
		h.rooms[sessionID] = r
	}
	h.mu.Unlock()

	r.mu.Lock()
	r.seq++
	event := models.DeliveryEvent{
		Type:      eventType,
		SessionID: sessionID,
		Seq:       r.seq,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	for ch := range r.subscribers {
		sendOrEvictOldest(ch, event)
	}
	r.mu.Unlock()

	return event
}

// sendOrEvictOldest delivers event to ch without blocking. If ch's buffer
// is full, the oldest queued event is dropped to make room so event still
// gets through; a second full buffer (another publisher won the race)
// means the subscriber side is draining slower than it's filling, and the
// send is skipped rather than spin-retrying.
func sendOrEvictOldest(ch chan models.DeliveryEvent, event models.DeliveryEvent) {
	select {
	case ch <- event:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- event:
	default:
	}
}

// SubscriberCount reports how many clients currently hold a subscription
// to sessionID's room. Useful for tests and diagnostics.
func (h *Hub) SubscriberCount(sessionID int64) int {
	h.mu.RLock()
	r, ok := h.rooms[sessionID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

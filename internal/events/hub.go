// Package events delivers stored notifications to live subscribers: an
// in-process hub feeds the websocket stream, and an optional AMQP publisher
// mirrors every event to a topic exchange for external consumers.
package events

import (
	"context"
	"log"
	"sync"

	"builderscentral/internal/models"
)

const subscriberBuffer = 16

// Hub fans inserted notifications out to per-recipient subscribers.
// A slow subscriber drops events rather than blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan models.Notification]struct{}

	amqp *AMQPPublisher
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan models.Notification]struct{}{}}
}

// WithAMQP attaches an optional external mirror.
func (h *Hub) WithAMQP(p *AMQPPublisher) *Hub {
	h.amqp = p
	return h
}

// Subscribe registers for a recipient's notifications. The returned cancel
// func must be called when the consumer goes away.
func (h *Hub) Subscribe(recipientID string) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, subscriberBuffer)
	h.mu.Lock()
	if h.subs[recipientID] == nil {
		h.subs[recipientID] = map[chan models.Notification]struct{}{}
	}
	h.subs[recipientID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[recipientID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, recipientID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish is best-effort on every path: dropped hub events and AMQP errors
// are logged, never returned.
func (h *Hub) Publish(ctx context.Context, n models.Notification) {
	h.mu.RLock()
	set := h.subs[n.UserID]
	targets := make([]chan models.Notification, 0, len(set))
	for ch := range set {
		targets = append(targets, ch)
	}
	h.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- n:
		default:
			log.Printf("events: dropping notification id=%s recipient=%s (subscriber backlog)", n.ID, n.UserID)
		}
	}

	if h.amqp != nil {
		if err := h.amqp.PublishNotification(ctx, n); err != nil {
			log.Printf("events: amqp publish failed id=%s type=%s err=%v", n.ID, n.Type, err)
		}
	}
}

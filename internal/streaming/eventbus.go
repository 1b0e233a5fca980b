package streaming

import (
	"context"
	"fmt"
	"sync"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

// EventBus distributes detection events to NATS, local subscribers and the
// WebSocket hub. Any of the sinks may be nil.
type EventBus struct {
	nats   *NATSPublisher
	hub    *WebSocketHub
	logger *logger.Logger

	mu          sync.RWMutex
	subscribers map[int]chan *models.DetectionEvent
	nextID      int
}

// NewEventBus creates a new event bus
func NewEventBus(nats *NATSPublisher, hub *WebSocketHub, log *logger.Logger) *EventBus {
	return &EventBus{
		nats:        nats,
		hub:         hub,
		logger:      log.WithComponent("event-bus"),
		subscribers: make(map[int]chan *models.DetectionEvent),
	}
}

// PublishDetection publishes an event to every sink. NATS failures are
// logged and returned after the local broadcast has happened.
func (eb *EventBus) PublishDetection(ctx context.Context, event *models.DetectionEvent) error {
	var natsErr error
	if eb.nats != nil && eb.nats.IsConnected() {
		if err := eb.nats.PublishDetection(ctx, event); err != nil {
			eb.logger.Warn().Err(err).Msg("failed to publish to NATS, using local broadcast only")
			natsErr = fmt.Errorf("nats: %w", err)
		}
	}

	eb.mu.RLock()
	for id, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			eb.logger.Debug().Int("subscriber", id).Msg("subscriber channel full, dropping event")
		}
	}
	eb.mu.RUnlock()

	if eb.hub != nil {
		eb.hub.BroadcastEvent(event)
	}

	return natsErr
}

// Subscribe registers a local subscriber. The returned function removes it.
func (eb *EventBus) Subscribe() (<-chan *models.DetectionEvent, func()) {
	eb.mu.Lock()
	eb.nextID++
	id := eb.nextID
	ch := make(chan *models.DetectionEvent, 100)
	eb.subscribers[id] = ch
	eb.mu.Unlock()

	eb.logger.Debug().Int("subscriber_id", id).Msg("new subscriber")

	unsubscribe := func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if _, ok := eb.subscribers[id]; ok {
			close(ch)
			delete(eb.subscribers, id)
			eb.logger.Debug().Int("subscriber_id", id).Msg("subscriber removed")
		}
	}

	return ch, unsubscribe
}

// SubscriberCount returns the number of active local subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Close closes all subscriber channels and the NATS connection
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for id, ch := range eb.subscribers {
		close(ch)
		delete(eb.subscribers, id)
	}

	if eb.nats != nil {
		eb.nats.Close()
	}
}

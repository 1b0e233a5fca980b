package handlers

import (
	"net/http"

	"hyaluron-watch/internal/streaming"
	"hyaluron-watch/pkg/logger"
)

// StreamingHandler serves live detection events
type StreamingHandler struct {
	wsHub    *streaming.WebSocketHub
	eventBus *streaming.EventBus
	logger   *logger.Logger
}

// NewStreamingHandler creates a new streaming handler
func NewStreamingHandler(wsHub *streaming.WebSocketHub, eventBus *streaming.EventBus, log *logger.Logger) *StreamingHandler {
	return &StreamingHandler{
		wsHub:    wsHub,
		eventBus: eventBus,
		logger:   log.WithComponent("streaming-handler"),
	}
}

// HandleWebSocket handles GET /ws/events
func (h *StreamingHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	h.logger.Debug().
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("WebSocket connection request")

	h.wsHub.ServeWebSocket(w, r)
}

// StreamingStats is the body of GET /api/v1/streaming/stats
type StreamingStats struct {
	WebSocketClients    int `json:"websocket_clients"`
	EventBusSubscribers int `json:"event_bus_subscribers"`
}

// GetStats handles GET /api/v1/streaming/stats
func (h *StreamingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var stats StreamingStats
	if h.wsHub != nil {
		stats.WebSocketClients = h.wsHub.ClientCount()
	}
	if h.eventBus != nil {
		stats.EventBusSubscribers = h.eventBus.SubscriberCount()
	}
	respondJSON(w, http.StatusOK, stats)
}

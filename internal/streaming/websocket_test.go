package streaming

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

func TestWebSocketHubDeliversMatchingEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWebSocketHub(logger.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	sub, err := json.Marshal(Subscription{Platforms: []string{"instagram"}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, sub))

	// wait for the subscription to be applied before broadcasting
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			c.mu.RLock()
			ok := c.subscription != nil
			c.mu.RUnlock()
			if ok {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastEvent(NewDetectionEvent(models.EventSuspiciousProfile, "facebook", "skip", "https://fb", 90))
	hub.BroadcastEvent(NewDetectionEvent(models.EventSuspiciousProfile, "instagram", "keep", "https://ig", 90))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.DetectionEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "keep", got.ProfileName)
}

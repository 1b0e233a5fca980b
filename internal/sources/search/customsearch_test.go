package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/sources"
	"hyaluron-watch/pkg/logger"
)

func newScraper(t *testing.T, handler http.HandlerFunc) *CustomSearchScraper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := sources.NewHTTPClient(config.ScraperConfig{Timeout: 5 * time.Second}, logger.NewNop()).WithRetry(1, 0)
	return NewCustomSearchScraper(client, config.SearchConfig{
		Enabled:  true,
		APIURL:   srv.URL,
		APIKey:   "key",
		EngineID: "cx",
	}, logger.NewNop())
}

func TestCustomSearchFetch(t *testing.T) {
	s := newScraper(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "cx", q.Get("cx"))
		assert.Equal(t, "Hyaluron Pen Preis", q.Get("q"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"title":"Studio Anna","link":"https://anna.example","snippet":"Hyaluron Pen ab 79€","displayLink":"anna.example"},
			{"title":"","link":"https://b.example","snippet":"Lippen","displayLink":"b.example"},
			{"title":"kein Link","link":""}
		]}`))
	})

	profiles, err := s.Fetch(context.Background(), "Hyaluron Pen Preis")
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, Platform, profiles[0].Platform)
	assert.Equal(t, "Studio Anna", profiles[0].ProfileName)
	assert.Equal(t, "https://anna.example", profiles[0].ProfileLink)
	assert.Equal(t, "Hyaluron Pen ab 79€", profiles[0].PostText)
	assert.Equal(t, "b.example", profiles[1].ProfileName)
}

func TestCustomSearchAPIError(t *testing.T) {
	s := newScraper(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
	})

	_, err := s.Fetch(context.Background(), "hyaluron")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestCustomSearchEmptyTerm(t *testing.T) {
	s := newScraper(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	profiles, err := s.Fetch(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestCustomSearchDisabledWithoutCredentials(t *testing.T) {
	client := sources.NewHTTPClient(config.ScraperConfig{}, logger.NewNop())
	s := NewCustomSearchScraper(client, config.SearchConfig{Enabled: true}, logger.NewNop())
	assert.False(t, s.IsEnabled())
}

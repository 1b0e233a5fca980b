// Package search finds candidate websites through a web search API.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/sources"
	"hyaluron-watch/pkg/logger"
)

// Platform is the batch key for search results
const Platform = "Web Search"

// resultsPerPage is the maximum the Custom Search JSON API allows
const resultsPerPage = 10

type searchResponse struct {
	Items []searchItem `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type searchItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

// CustomSearchScraper turns search engine hits into raw profile records
type CustomSearchScraper struct {
	*sources.BaseScraper
	client   *sources.HTTPClient
	apiURL   string
	apiKey   string
	engineID string
	logger   *logger.Logger
}

// NewCustomSearchScraper creates a new search scraper
func NewCustomSearchScraper(client *sources.HTTPClient, cfg config.SearchConfig, log *logger.Logger) *CustomSearchScraper {
	enabled := cfg.Enabled && cfg.APIKey != "" && cfg.EngineID != ""
	return &CustomSearchScraper{
		BaseScraper: sources.NewBaseScraper(Platform, enabled),
		client:      client,
		apiURL:      cfg.APIURL,
		apiKey:      cfg.APIKey,
		engineID:    cfg.EngineID,
		logger:      log.WithComponent("custom-search"),
	}
}

// Fetch runs one search query
func (s *CustomSearchScraper) Fetch(ctx context.Context, term string) ([]models.RawProfile, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.RawProfile{}, nil
	}

	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("cx", s.engineID)
	params.Set("q", term)
	params.Set("num", fmt.Sprint(resultsPerPage))
	params.Set("lr", "lang_de")
	params.Set("gl", "de")

	var resp searchResponse
	if err := s.client.GetJSON(ctx, s.apiURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("search %q failed: %w", term, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("search %q failed: %d %s", term, resp.Error.Code, resp.Error.Message)
	}

	profiles := make([]models.RawProfile, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Link == "" {
			continue
		}
		name := strings.TrimSpace(item.Title)
		if name == "" {
			name = item.DisplayLink
		}
		profiles = append(profiles, models.RawProfile{
			ProfileName: name,
			ProfileLink: item.Link,
			Description: item.Snippet,
			PostText:    item.Snippet,
			PostLink:    item.Link,
		})
	}

	s.logger.Info().
		Str("term", term).
		Int("results", len(profiles)).
		Msg("search completed")

	return s.Stamp(profiles), nil
}

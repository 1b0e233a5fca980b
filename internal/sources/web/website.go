// Package web scrapes individual websites for hyaluron pen offers.
package web

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/sources"
	"hyaluron-watch/pkg/logger"
)

// Platform is the batch key for website results
const Platform = "Website"

const (
	// descriptionSnippets is how many matching blocks form the description
	descriptionSnippets = 3
	contentMarker       = "hyaluron"
)

var addressMarkers = []string{"straße", "strasse", "platz", "weg"}

// WebsiteScraper treats each term as a URL and extracts one profile per
// page that mentions hyaluron.
type WebsiteScraper struct {
	*sources.BaseScraper
	client *sources.HTTPClient
	sites  []string
	logger *logger.Logger
}

// NewWebsiteScraper creates a scraper over the given site list
func NewWebsiteScraper(client *sources.HTTPClient, sites []string, log *logger.Logger) *WebsiteScraper {
	return &WebsiteScraper{
		BaseScraper: sources.NewBaseScraper(Platform, len(sites) > 0),
		client:      client,
		sites:       sites,
		logger:      log.WithComponent("website-scraper"),
	}
}

// Terms returns the configured websites
func (s *WebsiteScraper) Terms() []string {
	return s.sites
}

// Fetch downloads the page at term and extracts a profile from it
func (s *WebsiteScraper) Fetch(ctx context.Context, term string) ([]models.RawProfile, error) {
	s.logger.Info().Str("url", term).Msg("scraping website")

	page, err := s.client.GetPage(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", term, err)
	}

	profile, ok, err := ParsePage(page.Body, term)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", term, err)
	}
	if !ok {
		s.logger.Debug().Str("url", term).Msg("no hyaluron content found")
		return []models.RawProfile{}, nil
	}

	return s.Stamp([]models.RawProfile{profile}), nil
}

// ParsePage extracts a profile from an HTML document. ok is false when
// no text on the page mentions hyaluron.
func ParsePage(body []byte, link string) (models.RawProfile, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.RawProfile{}, false, err
	}

	doc.Find("script,noscript,style").Remove()

	profile := models.RawProfile{
		Platform:    Platform,
		ProfileName: strings.TrimSpace(doc.Find("title").First().Text()),
		ProfileLink: link,
		PostLink:    link,
	}

	if href, ok := doc.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
		email := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(email, '?'); i >= 0 {
			email = email[:i]
		}
		profile.Email = strings.TrimSpace(email)
	}

	var snippets []string
	doc.Find("*").Contents().Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) != "#text" {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		lower := strings.ToLower(text)

		if profile.Location == "" && containsAny(lower, addressMarkers) {
			profile.Location = text
		}
		if strings.Contains(lower, contentMarker) {
			if parent := strings.TrimSpace(sel.Parent().Text()); parent != "" {
				snippets = append(snippets, parent)
			}
		}
	})

	if len(snippets) == 0 {
		return profile, false, nil
	}

	n := min(len(snippets), descriptionSnippets)
	profile.Description = strings.Join(snippets[:n], "\n")
	profile.PostText = strings.Join(snippets, "\n")
	return profile, true, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
